package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"telecall/auth"
	"telecall/relay/middleware"
	"telecall/types/message"
)

var secret = []byte("test-secret")

func TestAuth(t *testing.T) {
	token, err := auth.Issue(secret, "u1", message.RoleDoctor, time.Minute)
	require.NoError(t, err)
	forged, err := auth.Issue([]byte("other"), "u1", message.RoleDoctor, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "given a valid header token when serving then claims are passed", header: "Bearer " + token, status: http.StatusNoContent},
		{name: "given a valid query token when serving then claims are passed", query: token, status: http.StatusNoContent},
		{name: "given no token when serving then it is unauthorized", status: http.StatusUnauthorized},
		{name: "given a forged token when serving then it is unauthorized", header: "Bearer " + forged, status: http.StatusUnauthorized},
		{name: "given a malformed header when serving then it is unauthorized", header: "Basic abc", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *auth.Claims
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = middleware.ClaimsFrom(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
			h := middleware.Set(next, middleware.NewAuth(secret, zap.NewNop()))

			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, got)
				assert.Equal(t, "u1", got.UserID())
				assert.Equal(t, message.RoleDoctor, got.Role)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	t.Run("given a preflight request when serving then it short-circuits with headers", func(t *testing.T) {
		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
		h := middleware.Set(next, middleware.NewCORS())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ws", nil))

		assert.False(t, called)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		level   string
		message string
	}{
		{name: "given a success when serving then it logs at debug", status: http.StatusOK, level: "debug", message: "request served"},
		{name: "given a failure when serving then it logs a warning", status: http.StatusNotFound, level: "warn", message: "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			h := middleware.Set(next, middleware.NewLogger(zap.New(core)))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level.String())
			assert.Equal(t, tt.message, entries[0].Message)
			assert.Equal(t, int64(tt.status), entries[0].ContextMap()["status"])
		})
	}
}
