package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// graphTestServer fakes both the token endpoint and the sendMail endpoint.
type graphTestServer struct {
	*httptest.Server
	tokenCalls int32
	sendCalls  int32
	sendBodies []map[string]any
	rejectFirstSend bool
}

func newGraphTestServer(t *testing.T) *graphTestServer {
	t.Helper()
	g := &graphTestServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&g.tokenCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + strings.Repeat("x", int(n)),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v1.0/users/", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&g.sendCalls, 1)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		g.sendBodies = append(g.sendBodies, body)
		if g.rejectFirstSend && n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	g.Server = httptest.NewServer(mux)
	return g
}

func newTestGraphSender(srv *graphTestServer) *GraphSender {
	return NewGraphSender(GraphOptions{
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		Sender:       "devis@example.com",
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
	})
}

func TestGraphSender_Send(t *testing.T) {
	srv := newGraphTestServer(t)
	defer srv.Close()

	err := newTestGraphSender(srv).Send(context.Background(), Message{
		To:      "contact@dupont.fr",
		Subject: "Repair Quote Request - VIN: WVWZZZ1KZAW123456",
		HTML:    "<p>Reference ID: req_1714643700123_ab12cd34ef</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if srv.sendCalls != 1 {
		t.Errorf("sendMail called %d times, want 1", srv.sendCalls)
	}

	msg := srv.sendBodies[0]["message"].(map[string]any)
	if msg["subject"] != "Repair Quote Request - VIN: WVWZZZ1KZAW123456" {
		t.Errorf("subject = %v", msg["subject"])
	}
	rcpts := msg["toRecipients"].([]any)
	addr := rcpts[0].(map[string]any)["emailAddress"].(map[string]any)["address"]
	if addr != "contact@dupont.fr" {
		t.Errorf("recipient = %v", addr)
	}
}

func TestGraphSender_RefreshesTokenOn401(t *testing.T) {
	srv := newGraphTestServer(t)
	defer srv.Close()
	srv.rejectFirstSend = true

	err := newTestGraphSender(srv).Send(context.Background(), Message{
		To: "contact@dupont.fr", Subject: "s", Text: "t",
	})
	if err != nil {
		t.Fatalf("Send after refresh: %v", err)
	}
	if srv.sendCalls != 2 {
		t.Errorf("sendMail called %d times, want 2 (one retry)", srv.sendCalls)
	}
	if srv.tokenCalls != 2 {
		t.Errorf("token endpoint called %d times, want 2 (forced refresh)", srv.tokenCalls)
	}
}

func TestGraphSender_TokenReusedAcrossSends(t *testing.T) {
	srv := newGraphTestServer(t)
	defer srv.Close()
	s := newTestGraphSender(srv)

	for i := 0; i < 3; i++ {
		if err := s.Send(context.Background(), Message{To: "a@b.fr", Subject: "s", Text: "t"}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if srv.tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1 (cached)", srv.tokenCalls)
	}
}

func TestGraphSender_OrdinaryFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/token") {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"ErrorInvalidRecipients"}}`))
	}))
	defer srv.Close()

	s := NewGraphSender(GraphOptions{
		Sender: "devis@example.com", BaseURL: srv.URL, TokenURL: srv.URL + "/token",
	})
	err := s.Send(context.Background(), Message{To: "bad", Subject: "s", Text: "t"})
	if err == nil {
		t.Fatal("Send to rejected recipient should return an error")
	}
}
