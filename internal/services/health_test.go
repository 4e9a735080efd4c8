package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthCheck_Check_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hc := HealthCheck{
		URL:            server.URL,
		Timeout:        5 * time.Second,
		ExpectedStatus: http.StatusOK,
	}

	status, err := hc.Check(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if status != HealthGreen {
		t.Errorf("Expected HealthGreen, got: %v", status)
	}
}

func TestHealthCheck_Check_WrongStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	hc := DefaultHealthCheck(server.URL)

	status, err := hc.Check(context.Background())
	if err == nil {
		t.Error("Expected error for wrong status code")
	}

	if status != HealthYellow {
		t.Errorf("Expected HealthYellow, got: %v", status)
	}
}

func TestHealthCheck_Check_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hc := HealthCheck{
		URL:            server.URL,
		Timeout:        50 * time.Millisecond,
		ExpectedStatus: http.StatusOK,
	}

	status, err := hc.Check(context.Background())
	if err == nil {
		t.Error("Expected timeout error")
	}

	if status != HealthRed {
		t.Errorf("Expected HealthRed, got: %v", status)
	}
}

func TestHealthCheck_Check_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	status, err := DefaultHealthCheck(url).Check(context.Background())
	if err == nil {
		t.Error("Expected error for closed server")
	}
	if status != HealthRed {
		t.Errorf("Expected HealthRed, got: %v", status)
	}
}

func TestOllamaTagsCheck(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	status, err := OllamaTagsCheck(server.URL + "/").Check(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if status != HealthGreen {
		t.Errorf("Expected HealthGreen, got: %v", status)
	}
	if path != "/api/tags" {
		t.Errorf("Expected request to /api/tags, got %s", path)
	}
}
