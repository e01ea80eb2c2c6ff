package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vietddude/pulse/internal/notify"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	requests []map[string]string
	status   int
	body     string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	req := map[string]string{"path": r.URL.Path}
	for k := range r.PostForm {
		req[k] = r.PostForm.Get(k)
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	status, body := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if body == "" {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			body = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"pulse","username":"pulse_bot"}}`
		} else {
			body = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`
		}
	}
	_, _ = w.Write([]byte(body))
}

func newTestSender(t *testing.T, api *fakeBotAPI) *Sender {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	s, err := New(Config{Token: "TOKEN", APIEndpoint: srv.URL + "/bot%s/%s"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestSend_NumericChat(t *testing.T) {
	api := &fakeBotAPI{}
	s := newTestSender(t, api)

	if err := s.Send(context.Background(), "42", "<b>hi</b>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(api.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(api.requests))
	}
	req := api.requests[0]
	if req["path"] != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %s", req["path"])
	}
	if req["chat_id"] != "42" {
		t.Errorf("expected chat_id 42, got %q", req["chat_id"])
	}
	if req["parse_mode"] != "HTML" {
		t.Errorf("expected HTML parse mode, got %q", req["parse_mode"])
	}
	if req["text"] != "<b>hi</b>" {
		t.Errorf("unexpected text %q", req["text"])
	}
}

func TestSend_ChannelUsername(t *testing.T) {
	api := &fakeBotAPI{}
	s := newTestSender(t, api)

	if err := s.Send(context.Background(), "pulse_alerts", "x"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := api.requests[0]["chat_id"]; got != "@pulse_alerts" {
		t.Errorf("expected @pulse_alerts, got %q", got)
	}
}

func TestSend_BadRequestIsPermanent(t *testing.T) {
	api := &fakeBotAPI{
		status: http.StatusBadRequest,
		body:   `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
	}
	s := newTestSender(t, api)

	err := s.Send(context.Background(), "42", "x")
	if !errors.Is(err, notify.ErrPermanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestSend_RateLimitIsTransient(t *testing.T) {
	api := &fakeBotAPI{
		status: http.StatusTooManyRequests,
		body:   `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`,
	}
	s := newTestSender(t, api)

	err := s.Send(context.Background(), "42", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, notify.ErrPermanent) {
		t.Errorf("rate limit must be retryable, got %v", err)
	}
}

func TestSend_EmptyRecipient(t *testing.T) {
	s := newTestSender(t, &fakeBotAPI{})
	if err := s.Send(context.Background(), " ", "x"); !errors.Is(err, notify.ErrPermanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	s := newTestSender(t, &fakeBotAPI{})

	name, err := s.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if name != "pulse_bot" {
		t.Errorf("expected pulse_bot, got %s", name)
	}
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing token")
	}
}
