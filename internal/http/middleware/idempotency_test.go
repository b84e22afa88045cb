package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyHelpers(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected no key")
	}
	if IsReplay(c) || IsRateBypass(c) {
		t.Fatalf("flags must default to false")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must be ignored")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("non-bool replay flag must be ignored")
	}
}

func idemEngine(lookup IdempotencyLookup, seen *struct{ key, replay string }) *gin.Engine {
	r := newEngine()
	r.Use(RequestID())
	r.POST("/conversations/:id/messages", IdempotencyValidator(lookup), func(c *gin.Context) {
		k, _ := GetIdempotencyKey(c)
		seen.key = k
		if IsReplay(c) && IsRateBypass(c) {
			seen.replay = "yes"
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestIdempotencyValidator(t *testing.T) {
	stored := map[string]bool{"c1/k-1": true}
	var calls int
	lookup := func(_ context.Context, conv, _, key string) (bool, error) {
		calls++
		if conv == "broken" {
			return false, errors.New("db down")
		}
		return stored[conv+"/"+key], nil
	}

	cases := []struct {
		name       string
		conv, key  string
		wantStatus int
		wantKey    string
		wantReplay string
	}{
		{"no header", "c1", "", http.StatusNoContent, "", ""},
		{"bad chars", "c1", "has space", http.StatusBadRequest, "", ""},
		{"too long", "c1", strings.Repeat("a", 201), http.StatusBadRequest, "", ""},
		{"miss", "c1", "k-2", http.StatusNoContent, "k-2", ""},
		{"hit", "c1", "k-1", http.StatusNoContent, "k-1", "yes"},
		{"lookup error is ignored", "broken", "k-1", http.StatusNoContent, "k-1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen struct{ key, replay string }
			r := idemEngine(lookup, &seen)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/conversations/"+tc.conv+"/messages", nil)
			if tc.key != "" {
				req.Header.Set(HeaderIdempotencyKey, tc.key)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusBadRequest {
				if body := decodeBody(t, w); body["code"] != "bad_request" {
					t.Fatalf("unexpected envelope: %v", body)
				}
				return
			}
			if seen.key != tc.wantKey || seen.replay != tc.wantReplay {
				t.Fatalf("seen = %+v", seen)
			}
		})
	}
	if calls != 3 {
		t.Fatalf("lookup calls = %d, want 3", calls)
	}
}

func TestIdempotencyValidator_ReplayOnlyOnSends(t *testing.T) {
	var gotUser string
	lookup := func(_ context.Context, _, user, _ string) (bool, error) {
		gotUser = user
		return true, nil
	}
	r := newEngine()
	r.Use(func(c *gin.Context) { c.Set(CtxUserID, "u1"); c.Next() })
	flags := func(c *gin.Context) {
		if IsReplay(c) || IsRateBypass(c) {
			c.Status(http.StatusAccepted)
			return
		}
		c.Status(http.StatusNoContent)
	}
	v := IdempotencyValidator(lookup)
	r.POST("/conversations/:id/messages", v, flags)
	r.GET("/conversations/:id/messages", v, flags)
	r.POST("/conversations/:id/read", v, flags)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/conversations/c1/messages", http.StatusAccepted},
		{http.MethodGet, "/conversations/c1/messages", http.StatusNoContent},
		{http.MethodPost, "/conversations/c1/read", http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set(HeaderIdempotencyKey, "k-1")
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %s: status = %d, want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}
	if gotUser != "u1" {
		t.Fatalf("lookup user = %q, want u1", gotUser)
	}
}
