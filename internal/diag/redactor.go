package diag

import (
	"regexp"
)

const redacted = "[REDACTED]"

// secretRule rewrites one kind of secret found in gpustack config, compose
// environment blocks, container logs or the gpustack log file.
type secretRule struct {
	name string
	re   *regexp.Regexp
	repl string
}

// Ollama, gpustack and Hugging Face settings that carry credentials. Plain
// settings such as OLLAMA_HOST or GPUSTACK_MODEL are left readable.
const credentialEnv = `(?:OLLAMA|GPUSTACK|HF|HUGGING_FACE|HUGGINGFACE)_[A-Z0-9_]*(?:KEY|TOKEN|SECRET|PASSWORD|AUTH)[A-Z0-9_]*`

var secretRules = []secretRule{
	{
		// "export HF_TOKEN=...", "HF_TOKEN=..." and compose "- OLLAMA_API_KEY=..."
		name: "env",
		re:   regexp.MustCompile(`(?m)^(\s*(?:-\s*|export\s+)?)(` + credentialEnv + `)\s*=\s*["']?[^"'\s]+["']?`),
		repl: "${1}${2}=" + redacted,
	},
	{
		// compose mapping form, "HF_TOKEN: ..."
		name: "env-mapping",
		re:   regexp.MustCompile(`(?m)^(\s*)(` + credentialEnv + `):\s*["']?[^"'\s]+["']?`),
		repl: "${1}${2}: " + redacted,
	},
	{
		name: "url-userinfo",
		re:   regexp.MustCompile(`(?i)\b(https?)://([^:/@\s]+):[^@\s/]+@`),
		repl: "${1}://${2}:" + redacted + "@",
	},
	{
		// signed registry or proxy URLs in pull errors
		name: "url-query",
		re:   regexp.MustCompile(`(?i)([?&](?:token|key|api[_-]?key|access[_-]?token|sig|password|(?:x-amz-)?(?:signature|credential|security-token))=)[^&#\s"']+`),
		repl: "${1}" + redacted,
	},
	{
		name: "auth-header",
		re:   regexp.MustCompile(`(?i)(Authorization:\s*)(Bearer|Basic)\s+\S+`),
		repl: "${1}${2} " + redacted,
	},
	{
		name: "hf-token",
		re:   regexp.MustCompile(`\bhf_[A-Za-z0-9]{16,}\b`),
		repl: "hf_" + redacted,
	},
	{
		name: "key-value",
		re:   regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret|password)(\s*[:=]\s*)["']?[^"'\s\[]+["']?`),
		repl: "${1}${2}" + redacted,
	},
}

// Redactor strips credentials before files go into a diagnostic bundle
type Redactor struct {
	rules []secretRule
}

// NewRedactor creates a redactor with the gpustack secret rules
func NewRedactor() *Redactor {
	return &Redactor{rules: secretRules}
}

// Redact applies every rule in order
func (r *Redactor) Redact(input string) string {
	out := input
	for _, rule := range r.rules {
		out = rule.re.ReplaceAllString(out, rule.repl)
	}
	return out
}

// Matches returns the names of the rules that would change input
func (r *Redactor) Matches(input string) []string {
	var names []string
	for _, rule := range r.rules {
		if rule.re.MatchString(input) {
			names = append(names, rule.name)
		}
	}
	return names
}
