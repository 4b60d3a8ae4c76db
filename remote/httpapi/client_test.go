package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parleyhq/parley/core/protocol"
	"github.com/parleyhq/parley/remote"
	"github.com/parleyhq/parley/remote/httpapi"
)

func newClient(t *testing.T, srv *httptest.Server) *httpapi.Client {
	t.Helper()
	client, err := httpapi.New(
		&httpapi.Config{Endpoint: srv.URL},
		httpapi.StaticTokenCredential("tok_test"),
		httpapi.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("httpapi.New failed: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	if _, err := httpapi.New(&httpapi.Config{}, httpapi.StaticTokenCredential("t")); err == nil {
		t.Error("New should reject an empty endpoint")
	}
	if _, err := httpapi.New(&httpapi.Config{Endpoint: "https://api.example.com"}, nil); err == nil {
		t.Error("New should reject a nil credential provider")
	}
}

func TestCreateThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/threads" {
			t.Errorf("got %s %s, want POST /threads", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got == "" {
			t.Error("api-version query parameter missing")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok_test" {
			t.Errorf("got authorization %q, want bearer token", got)
		}
		fmt.Fprint(w, `{"id": "thread_abc123"}`)
	}))
	defer srv.Close()

	ref, err := newClient(t, srv).CreateThread(context.Background())
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	if ref != "thread_abc123" {
		t.Errorf("got thread ref %q, want %q", ref, "thread_abc123")
	}
}

func TestPostMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/thread_1/messages" {
			t.Errorf("got path %s, want /threads/thread_1/messages", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["role"] != "user" || body["content"] != "Hello" {
			t.Errorf("got body %v, want role=user content=Hello", body)
		}
		fmt.Fprint(w, `{"id": "msg_1"}`)
	}))
	defer srv.Close()

	err := newClient(t, srv).PostMessage(context.Background(), "thread_1", protocol.RoleUser, "Hello")
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
}

func TestStartRun_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		want   remote.RunStatus
	}{
		{name: "queued", remote: "queued", want: remote.RunQueued},
		{name: "in progress maps to running", remote: "in_progress", want: remote.RunRunning},
		{name: "requires action maps to running", remote: "requires_action", want: remote.RunRunning},
		{name: "completed", remote: "completed", want: remote.RunCompleted},
		{name: "cancelled maps to failed", remote: "cancelled", want: remote.RunFailed},
		{name: "expired maps to failed", remote: "expired", want: remote.RunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body["assistant_id"] != "asst_1" {
					t.Errorf("got assistant_id %q, want asst_1", body["assistant_id"])
				}
				fmt.Fprintf(w, `{"id": "run_1", "status": %q}`, tt.remote)
			}))
			defer srv.Close()

			run, err := newClient(t, srv).StartRun(context.Background(), "thread_1", "asst_1")
			if err != nil {
				t.Fatalf("StartRun failed: %v", err)
			}
			if run.Status != tt.want {
				t.Errorf("got status %q, want %q", run.Status, tt.want)
			}
		})
	}
}

func TestGetRun_FailureDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/thread_1/runs/run_1" {
			t.Errorf("got path %s, want /threads/thread_1/runs/run_1", r.URL.Path)
		}
		fmt.Fprint(w, `{"id": "run_1", "status": "failed", "last_error": {"code": "rate_limited", "message": "try again later"}}`)
	}))
	defer srv.Close()

	run, err := newClient(t, srv).GetRun(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != remote.RunFailed {
		t.Errorf("got status %q, want failed", run.Status)
	}
	if run.ErrorDetail != "rate_limited: try again later" {
		t.Errorf("got detail %q, want code and message", run.ErrorDetail)
	}
}

func TestListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("order"); got != "asc" {
			t.Errorf("got order %q, want asc", got)
		}
		fmt.Fprint(w, `{"data": [
			{"id": "msg_1", "role": "user", "content": [{"type": "text", "text": {"value": "Hello"}}]},
			{"id": "msg_2", "role": "assistant", "content": [
				{"type": "image_file", "text": {"value": ""}},
				{"type": "text", "text": {"value": "Hi there"}}
			]}
		]}`)
	}))
	defer srv.Close()

	msgs, err := newClient(t, srv).ListMessages(context.Background(), "thread_1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != protocol.RoleUser || msgs[0].Content != "Hello" {
		t.Errorf("got first message {%s, %q}, want {user, Hello}", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].ID != "msg_2" || msgs[1].Content != "Hi there" {
		t.Errorf("got second message {%s, %q}, want {msg_2, Hi there}", msgs[1].ID, msgs[1].Content)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"code": "rate_limited", "message": "slow down"}}`)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).CreateThread(context.Background())
	var apiErr *httpapi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got error %v, want *httpapi.APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("got status %d, want 429", apiErr.StatusCode)
	}
	if apiErr.Code != "rate_limited" {
		t.Errorf("got code %q, want rate_limited", apiErr.Code)
	}
}

func TestAPIError_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream unavailable")
	}))
	defer srv.Close()

	_, err := newClient(t, srv).CreateThread(context.Background())
	var apiErr *httpapi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got error %v, want *httpapi.APIError", err)
	}
	if apiErr.Message != "upstream unavailable" {
		t.Errorf("got message %q, want raw body", apiErr.Message)
	}
}

func TestCredential_Empty(t *testing.T) {
	_, err := httpapi.StaticTokenCredential("").Token(context.Background())
	if err == nil {
		t.Error("empty credential should fail")
	}
}
