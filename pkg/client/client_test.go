package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPingSuccessAndAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "good-token" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid Token"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "0.1.0", "token": "global"})
	}))
	defer srv.Close()

	c := New(srv.URL, "good-token")
	res, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("expected ping to succeed: %v", err)
	}
	if res.Token != "global" {
		t.Fatalf("expected global classification, got %q", res.Token)
	}

	bad := New(srv.URL, "bad-token")
	if _, err := bad.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping with bad token to fail")
	}
}

func TestActionSendsTokenInBody(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	if err := c.Action(context.Background(), "web", "Start", ActionOptions{}); err != nil {
		t.Fatalf("action: %v", err)
	}
	if gotBody["token"] != "token" || gotBody["name"] != "web" || gotBody["action"] != "Start" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestLogsDecodesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"logs": []map[string]any{{"kind": "Info", "timestamp": 1000, "text": "hello"}},
			"end":  true,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	entries, end, err := c.Logs(context.Background(), 0, 20, 0, false)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !end || len(entries) != 1 || entries[0].Text != "hello" || entries[0].Kind != "Info" {
		t.Fatalf("unexpected result: entries=%+v end=%v", entries, end)
	}
}
