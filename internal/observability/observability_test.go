package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json info", "info", "json", false},
		{"console debug", "debug", "console", false},
		{"upper case level", "WARN", "json", false},
		{"invalid level", "loud", "json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	t.Run("adds request id", func(t *testing.T) {
		var ctx context.Context
		handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx = r.Context()
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		RequestLogger(ctx, base).Info("hello")

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, middleware.GetReqID(ctx), entries[0].ContextMap()["request_id"])
	})

	t.Run("no request id", func(t *testing.T) {
		RequestLogger(context.Background(), base).Info("hello")

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.NotContains(t, entries[0].ContextMap(), "request_id")
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(TokenVerifications.WithLabelValues(ResultFailure))
	TokenVerifications.WithLabelValues(ResultFailure).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TokenVerifications.WithLabelValues(ResultFailure)))

	before = testutil.ToFloat64(ThrottledRequests)
	ThrottledRequests.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ThrottledRequests))
}
