package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/handler/http/requestid"
	"schoolnotify/internal/handler/http/whatsapp"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(5)
	mock.ExpectPing()

	return NewRouter(RouterDeps{
		DB:       db,
		Notifier: &fakeNotifier{health: allHealthy(), stats: &entity.DeliveryStats{}},
		Records:  &fakeMarker{},
		WhatsApp: whatsapp.NewHandler("tok", nil),
		Version:  "v-test",
	})
}

// TestNewRouter_Routes verifies every route is mounted with the right method.
func TestNewRouter_Routes(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		body     string
		wantCode int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/health/live", "", http.StatusOK},
		{http.MethodGet, "/health/channels", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/stats?from=2026-09-01", "", http.StatusOK},
		{http.MethodPost, "/notifications/5/read", "", http.StatusNoContent},
		{http.MethodGet, "/notifications/5/read", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=ok", "", http.StatusOK},
		{http.MethodPost, "/webhooks/whatsapp", `{"entry":[]}`, http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			router := newTestRouter(t)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(requestid.RequestIDHeader))
		})
	}
}

// TestNewRouter_OptionalRoutes verifies nil collaborators leave routes out.
func TestNewRouter_OptionalRoutes(t *testing.T) {
	router := NewRouter(RouterDeps{})

	for _, path := range []string{"/health/channels", "/stats", "/webhooks/whatsapp"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
