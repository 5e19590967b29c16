package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testCommand(t *testing.T, commandType CommandType, payload any) Command {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return Command{
		Type: commandType,
		Context: CommandContext{
			UserID:    "user_demo",
			RequestID: "req-123",
			Source:    "test",
			IssuedAt:  time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC),
		},
		Payload: raw,
	}
}

func acceptedBody(t *testing.T, commandType CommandType, result any) []byte {
	t.Helper()
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	body, err := json.Marshal(Result{
		Status:     "accepted",
		Type:       commandType,
		RequestID:  "req-123",
		ReceivedAt: time.Date(2026, 1, 20, 9, 0, 1, 0, time.UTC),
		Result:     raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if got := r.URL.Path; got != "/runtime/dismiss" {
			t.Errorf("path = %q, want /runtime/dismiss", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekret" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(acceptedBody(t, CommandDismiss, DismissCommandResult{ItemID: "w_board"}))
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{BaseURL: srv.URL, Token: "sekret", MaxAttempts: 3})
	result, err := d.Dispatch(context.Background(), testCommand(t, CommandDismiss, DismissPayload{ItemID: "w_board"}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if result.RequestID != "req-123" {
		t.Errorf("requestId = %q", result.RequestID)
	}
}

func TestDispatchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{BaseURL: srv.URL, MaxAttempts: 2})
	_, err := d.Dispatch(context.Background(), testCommand(t, CommandDismiss, DismissPayload{ItemID: "w_board"}))

	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("error = %v, want DispatchError", err)
	}
	if dispatchErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", dispatchErr.StatusCode)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDispatchDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusConflict, ErrorResult{
			Status:    "error",
			RequestID: "req-123",
			Code:      CodeConflict,
			Message:   "work item w_board was already dismissed",
		})
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{BaseURL: srv.URL, MaxAttempts: 4})
	_, err := d.Dispatch(context.Background(), testCommand(t, CommandDismiss, DismissPayload{ItemID: "w_board"}))

	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("error = %v, want DispatchError", err)
	}
	if dispatchErr.Retryable {
		t.Error("conflict marked retryable")
	}
	if dispatchErr.Code != CodeConflict {
		t.Errorf("code = %q", dispatchErr.Code)
	}
	if dispatchErr.Message != "work item w_board was already dismissed" {
		t.Errorf("message = %q", dispatchErr.Message)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDispatchRequiresBaseURL(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	_, err := d.Dispatch(context.Background(), testCommand(t, CommandDismiss, DismissPayload{ItemID: "w_board"}))

	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
}

func TestDispatchRejectsInvalidCommandBeforeSending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server")
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{BaseURL: srv.URL})
	cmd := testCommand(t, CommandFeedback, FeedbackPayload{ItemID: "w_board", Rating: "meh"})
	_, err := d.Dispatch(context.Background(), cmd)

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestDispatchRejectsMalformedSuccessEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "done"})
	}))
	defer srv.Close()

	d := NewDispatcher(DispatcherConfig{BaseURL: srv.URL})
	_, err := d.Dispatch(context.Background(), testCommand(t, CommandDismiss, DismissPayload{ItemID: "w_board"}))

	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("error = %v, want DispatchError", err)
	}
	if dispatchErr.Retryable {
		t.Error("envelope error marked retryable")
	}
}

func TestNewDispatcherClampsConfig(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Timeout: time.Millisecond, MaxAttempts: 99})
	if d.timeout != minDispatchTimeout {
		t.Errorf("timeout = %v, want %v", d.timeout, minDispatchTimeout)
	}
	if d.maxAttempts != maxMaxAttempts {
		t.Errorf("maxAttempts = %d, want %d", d.maxAttempts, maxMaxAttempts)
	}

	d = NewDispatcher(DispatcherConfig{Timeout: 5 * time.Minute})
	if d.timeout != maxDispatchTimeout {
		t.Errorf("timeout = %v, want %v", d.timeout, maxDispatchTimeout)
	}
	if d.maxAttempts != defaultMaxAttempts {
		t.Errorf("maxAttempts = %d, want %d", d.maxAttempts, defaultMaxAttempts)
	}
}
