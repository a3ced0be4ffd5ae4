package litellm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promptforge/internal/domain/prompt"
	"promptforge/internal/resilience"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected system+user messages, got %d", len(req.Messages))
		}

		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: content}})
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestAnalyzeParsesReply(t *testing.T) {
	srv := completionServer(t, `{"task_types":["deduction","comparison"],"behavior_types":["precision"],"domain":"legal"}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini")

	a, err := c.Analyze(context.Background(), "compare these contracts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a.DetectedTasks) != 2 || a.DetectedTasks[0] != prompt.TaskDeduction {
		t.Fatalf("unexpected tasks: %v", a.DetectedTasks)
	}
	if len(a.DetectedBehaviors) != 1 || a.DetectedBehaviors[0] != prompt.BehaviorPrecision {
		t.Fatalf("unexpected behaviors: %v", a.DetectedBehaviors)
	}
	if a.DomainHint != "legal" {
		t.Fatalf("unexpected domain %q", a.DomainHint)
	}
}

func TestAnalyzeDropsUnknownLabels(t *testing.T) {
	srv := completionServer(t, `{"task_types":["deduction","vibes"],"behavior_types":["guessing"],"domain":""}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini")

	a, err := c.Analyze(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.DetectedTasks) != 1 || len(a.DetectedBehaviors) != 0 {
		t.Fatalf("unknown labels must be dropped: %v / %v", a.DetectedTasks, a.DetectedBehaviors)
	}
}

func TestAnalyzeStripsCodeFences(t *testing.T) {
	srv := completionServer(t, "```json\n{\"task_types\":[\"induction\"],\"behavior_types\":[],\"domain\":\"\"}\n```")
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini")

	a, err := c.Analyze(context.Background(), "find the pattern")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.DetectedTasks) != 1 || a.DetectedTasks[0] != prompt.TaskInduction {
		t.Fatalf("unexpected tasks: %v", a.DetectedTasks)
	}
}

func TestGenerateReturnsTrimmedText(t *testing.T) {
	srv := completionServer(t, "  You are an expert contract lawyer.\n")
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini")

	text, err := c.Generate(context.Background(), prompt.ComponentPersona, "review this contract", prompt.Analysis{
		DetectedTasks: []prompt.TaskType{prompt.TaskDeduction},
		DomainHint:    "legal",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "You are an expert contract lawyer." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestGenerateRejectsUnknownComponent(t *testing.T) {
	c := NewClient("http://localhost:0", "", "gpt-4o-mini")

	if _, err := c.Generate(context.Background(), "preamble", "x", prompt.Analysis{}); err == nil {
		t.Fatal("expected error for unknown component type")
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "proxy overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini")

	if _, err := c.Analyze(context.Background(), "anything"); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini")
	c.SetBreaker(resilience.NewBreaker(2, time.Minute))

	for i := 0; i < 5; i++ {
		_, _ = c.Analyze(context.Background(), "anything")
	}

	if calls > 2 {
		t.Fatalf("breaker must stop calls after 2 failures, server saw %d", calls)
	}
}
