package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/restsend/chatkit/chaterr"
)

func TestLoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"endpoint": srv2URL,
			"userId":   "alice",
			"token":    "tok123",
		})
	}))
	defer srv.Close()
	srv2URL = srv.URL

	svc := New(srv.URL, "", "/api", 5*time.Second)
	auth, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if auth.UserID != "alice" || auth.Token != "tok123" {
		t.Fatalf("unexpected auth: %+v", auth)
	}
}

var srv2URL string

func TestHandleResponseErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   chaterr.Kind
	}{
		{http.StatusForbidden, chaterr.KindForbidden},
		{http.StatusUnauthorized, chaterr.KindInvalidPassword},
		{http.StatusNotFound, chaterr.KindNotFound},
		{http.StatusBadRequest, chaterr.KindHTTP},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
			w.Write([]byte(`{"error":"boom"}`))
		}))
		svc := New(srv.URL, "", "/api", 5*time.Second)
		err := svc.do(context.Background(), http.MethodGet, "/x", nil, nil)
		if err == nil {
			t.Fatalf("status %d: expected error", c.status)
		}
		if !chaterr.Is(err, c.want) {
			t.Fatalf("status %d: expected kind %s, got %v", c.status, c.want, err)
		}
		srv.Close()
	}
}
