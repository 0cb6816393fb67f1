package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/logger"
)

const signingKey = "test-signing-key-with-enough-bytes"

func newApprover(t *testing.T, handler http.HandlerFunc) *HTTPApprover {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPApprover(config.ProducerApproval{
		BaseURL:    srv.URL + "/",
		Timeout:    time.Second,
		ClientID:   "movement-service",
		SigningKey: signingKey,
		TokenTTL:   time.Minute,
	}, logger.Discard())
}

func TestHTTPApprover(t *testing.T) {
	t.Run("approved producer", func(t *testing.T) {
		var auth, path string
		a := newApprover(t, func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			path = r.URL.Path
			_, _ = w.Write([]byte(`{"role":"PRODUCER","status":"approved"}`))
		})
		assert.True(t, a.IsApproved(context.Background(), "prod-9"))
		assert.Equal(t, "/users/prod-9", path)
		require.True(t, strings.HasPrefix(auth, "Bearer "))

		claims := &ServiceClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(*jwt.Token) (any, error) {
			return []byte(signingKey), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		require.NoError(t, err)
		assert.Equal(t, "movement-service", claims.Subject)
	})

	t.Run("wrong role or status is not approved", func(t *testing.T) {
		for _, body := range []string{
			`{"role":"auditor","status":"APPROVED"}`,
			`{"role":"producer","status":"PENDING"}`,
			`not json`,
		} {
			a := newApprover(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			assert.False(t, a.IsApproved(context.Background(), "p"), body)
		}
	})

	t.Run("non-2xx is not approved", func(t *testing.T) {
		a := newApprover(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		assert.False(t, a.IsApproved(context.Background(), "p"))
	})

	t.Run("unreachable service is not approved", func(t *testing.T) {
		a := NewHTTPApprover(config.ProducerApproval{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, logger.Discard())
		assert.False(t, a.IsApproved(context.Background(), "p"))
	})
}

func TestHTTPApprover_BreakerFailsFastAfterOutage(t *testing.T) {
	var calls atomic.Int32
	a := newApprover(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 10; i++ {
		assert.False(t, a.IsApproved(context.Background(), "p"))
	}
	assert.Equal(t, int32(5), calls.Load(), "breaker stops calling after the failure threshold")
	assert.True(t, a.breaker.IsOpen())
}

func TestTokenSourceCachesUntilNearExpiry(t *testing.T) {
	ts := NewTokenSource(signingKey, "svc", time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	first, err := ts.Token()
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	second, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	now = now.Add(20 * time.Second) // inside the refresh margin
	third, err := ts.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}
