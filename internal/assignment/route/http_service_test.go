package route

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
)

func newRoutingServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, routePath, r.URL.Path)
		assert.Equal(t, "Depot, Leeds", r.URL.Query().Get("origin"))
		assert.Equal(t, "1 High St, York", r.URL.Query().Get("destination"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPService_Estimate(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantRoute   Route
		wantErr     bool
		wantMalform bool
	}{
		{
			name:      "snake case",
			status:    http.StatusOK,
			body:      `{"distance_km": 41.2, "travel_minutes": 47}`,
			wantRoute: Route{DistanceKm: 41.2, TravelMinutes: 47},
		},
		{
			name:      "camel case",
			status:    http.StatusOK,
			body:      `{"distanceKm": 3, "travelMinutes": 8.5}`,
			wantRoute: Route{DistanceKm: 3, TravelMinutes: 8.5},
		},
		{
			name:        "string distance",
			status:      http.StatusOK,
			body:        `{"distance_km": "far", "travel_minutes": 8}`,
			wantErr:     true,
			wantMalform: true,
		},
		{
			name:        "missing minutes",
			status:      http.StatusOK,
			body:        `{"distance_km": 4}`,
			wantErr:     true,
			wantMalform: true,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `{"error":"upstream"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRoutingServer(t, tt.status, tt.body)
			svc := NewHTTPService(HTTPConfig{BaseURL: srv.URL, APIKey: "secret", RateLimit: 100, Burst: 5}, logger.NewTestLogger(t))

			got, err := svc.Estimate(context.Background(), "Depot, Leeds", "1 High St, York")
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRoute, got)
				return
			}
			require.Error(t, err)
			if tt.wantMalform {
				assert.True(t, errors.Is(err, errMalformed))
			} else {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRouteServiceFailed))
			}
		})
	}
}

func TestHTTPService_FallbackThroughEstimator(t *testing.T) {
	srv := newRoutingServer(t, http.StatusInternalServerError, `oops`)
	svc := NewHTTPService(HTTPConfig{BaseURL: srv.URL, APIKey: "secret"}, logger.NewTestLogger(t))
	e := NewEstimator(svc, logger.NewTestLogger(t))

	got := e.Estimate(context.Background(), "Depot, Leeds", "1 High St, York")
	require.NotNil(t, got.DistanceKm)
	assert.True(t, got.Degraded)
	assertFallbackRange(t, *got.DistanceKm, *got.TravelMinutes)
}

func TestHTTPService_RateLimiterHonoursContext(t *testing.T) {
	svc := NewHTTPService(HTTPConfig{BaseURL: "http://127.0.0.1:1", RateLimit: 0.001, Burst: 1}, logger.NewNoOpLogger())
	// Drain the single token.
	require.True(t, svc.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Estimate(ctx, "a", "b")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRouteServiceFailed))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "ok", 10, "ok"},
		{"ascii", "abcdef", 3, "abc..."},
		{"cut inside rune", "abécd", 3, "ab..."},
		{"cut after rune", "abécd", 4, "abé..."},
		{"multibyte only", "日本語", 4, "日..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
