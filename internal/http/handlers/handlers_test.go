package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/homefinder-messaging/internal/domain"
	"github.com/tbourn/homefinder-messaging/internal/http/middleware"
	"github.com/tbourn/homefinder-messaging/internal/realtime"
	"github.com/tbourn/homefinder-messaging/internal/repo"
	"github.com/tbourn/homefinder-messaging/internal/services"
)

type testEnv struct {
	db     *gorm.DB
	reg    *realtime.Registry
	engine *gin.Engine
}

// newTestEnv wires real services over a fresh SQLite file. Callers identify
// themselves with the X-User-ID dev header.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	for _, p := range []domain.Property{
		{ID: "P123", OwnerID: "owner1", Title: "Sunny flat"},
		{ID: "P200", OwnerID: "owner2", Title: "Loft"},
	} {
		p := p
		if err := repo.UpsertProperty(context.Background(), db, &p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	reg := realtime.NewRegistry(realtime.Options{})
	t.Cleanup(reg.Close)

	h := New(
		services.NewConversationService(db, repo.Catalog{DB: db}),
		services.NewMessageService(db, realtime.NewBroker(reg), 50),
		&services.ReadService{DB: db},
		reg,
		Options{},
	)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1", middleware.Authenticate(middleware.AuthOptions{DevHeaders: true}))
	api.POST("/conversations", h.CreateConversation)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:id", h.GetConversation)
	api.POST("/conversations/:id/messages", middleware.IdempotencyValidator(nil), h.PostMessage)
	api.GET("/conversations/:id/messages", h.ListMessages)
	api.POST("/conversations/:id/read", h.MarkRead)

	return &testEnv{db: db, reg: reg, engine: r}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) openConversation(t *testing.T, property, client string) ConversationResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/conversations", client, gin.H{"propertyId": property})
	if w.Code != http.StatusCreated && w.Code != http.StatusOK {
		t.Fatalf("create conversation: %d %s", w.Code, w.Body)
	}
	return decode[ConversationResponse](t, w)
}

func (e *testEnv) send(t *testing.T, convID, user, body string) PostMessageResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/conversations/"+convID+"/messages", user, gin.H{"body": body})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", w.Code, w.Body)
	}
	return decode[PostMessageResponse](t, w)
}
