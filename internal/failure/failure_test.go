package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WrapAndClassify(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("setup: %w", New(LaunchFailed, "compose up", cause))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, LaunchFailed, kind)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, LaunchFailed))
	assert.False(t, Is(err, PullFailed))
	assert.Equal(t, "compose up: exit status 1", errors.Unwrap(err).Error())
}

func TestIsSoft(t *testing.T) {
	tests := []struct {
		kind Kind
		soft bool
	}{
		{MissingPrerequisite, false},
		{ValidationRejected, false},
		{LaunchFailed, false},
		{HealthTimeout, true},
		{HealthFailed, false},
		{PullFailed, false},
		{ProbeUnavailable, true},
		{HostBusy, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "op", nil)
			assert.Equal(t, tt.soft, IsSoft(err))
			assert.NotEmpty(t, HintOf(err))
			if tt.soft {
				assert.Equal(t, ExitOK, ExitCode(err))
			} else {
				assert.Equal(t, ExitFatal, ExitCode(err))
			}
		})
	}
}

func TestExitCode_PlainErrors(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFatal, ExitCode(errors.New("boom")))
	assert.False(t, IsSoft(errors.New("boom")))
	assert.Empty(t, HintOf(errors.New("boom")))
}

func TestWithHint(t *testing.T) {
	err := New(PullFailed, "pull", nil).WithHint("custom")
	assert.Equal(t, "custom", HintOf(err))
	assert.Equal(t, "pull: pull_failed", err.Error())
}
