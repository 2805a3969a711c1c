package route

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
)

const routePath = "/v1/route"

type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64 // requests per second, <= 0 disables limiting
	Burst     int
}

// HTTPService calls an external routing API:
//
//	GET {base}/v1/route?origin=...&destination=...
//
// and reads distance_km/travel_minutes (or their camelCase forms) from the
// JSON response.
type HTTPService struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

func NewHTTPService(cfg HTTPConfig, log logger.Logger) *HTTPService {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(DefaultTimeout)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPService{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  log.WithFields(map[string]interface{}{"component": "route-http"}),
	}
}

func (s *HTTPService) Estimate(ctx context.Context, origin, destination string) (Route, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Route{}, apperrors.NewRouteServiceFailedError(fmt.Errorf("rate limiter: %w", err))
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"origin":      origin,
			"destination": destination,
		}).
		Get(routePath)
	if err != nil {
		return Route{}, apperrors.NewRouteServiceFailedError(err)
	}
	if resp.IsError() {
		return Route{}, apperrors.NewRouteServiceFailedError(
			fmt.Errorf("routing service returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200)))
	}

	body := resp.String()
	distance, ok := firstNumber(body, "distance_km", "distanceKm")
	if !ok {
		return Route{}, fmt.Errorf("%w: no distance in response", errMalformed)
	}
	minutes, ok := firstNumber(body, "travel_minutes", "travelMinutes")
	if !ok {
		return Route{}, fmt.Errorf("%w: no travel time in response", errMalformed)
	}

	s.logger.Debug("Route estimated", map[string]interface{}{
		"distanceKm":    distance,
		"travelMinutes": minutes,
		"latencyMs":     time.Since(start).Milliseconds(),
	})
	return Route{DistanceKm: distance, TravelMinutes: minutes}, nil
}

func firstNumber(body string, paths ...string) (float64, bool) {
	for _, p := range paths {
		if v := gjson.Get(body, p); v.Type == gjson.Number {
			return v.Float(), true
		}
	}
	return 0, false
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
