// Package route estimates travel distance and time between an assessor's
// base location and a job site.
package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/metrics"
	"assessor-dispatch/internal/models"
)

const (
	DefaultTimeout = 3000 * time.Millisecond

	MissingLocationMessage = "Missing location data"

	fallbackMinKm      = 5.0
	fallbackMaxKm      = 45.0
	fallbackMinMinutes = 10.0
	fallbackMaxMinutes = 60.0
)

// Route is a raw answer from a routing service.
type Route struct {
	DistanceKm    float64
	TravelMinutes float64
}

// Service is the external distance/travel-time lookup. Implementations may
// be slow or fail; the Estimator bounds them.
type Service interface {
	Estimate(ctx context.Context, origin, destination string) (Route, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, origin, destination string) (Route, error)

func (f ServiceFunc) Estimate(ctx context.Context, origin, destination string) (Route, error) {
	return f(ctx, origin, destination)
}

// Estimator wraps a Service with a hard timeout and a synthetic fallback so
// every call produces a usable estimate.
type Estimator struct {
	service Service
	timeout time.Duration
	random  func() float64
	logger  logger.Logger
}

type Option func(*Estimator)

func WithTimeout(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRandom replaces the fallback's source of uniform values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(e *Estimator) {
		if f != nil {
			e.random = f
		}
	}
}

func NewEstimator(service Service, log logger.Logger, opts ...Option) *Estimator {
	e := &Estimator{
		service: service,
		timeout: DefaultTimeout,
		random:  rand.Float64,
		logger:  log.WithFields(map[string]interface{}{"component": "route-estimator"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate never fails. Missing endpoints short-circuit to a degraded estimate
// without calling the service; a slow, failing or malformed service answer
// degrades to a synthetic fallback. If ctx itself ends first the estimate is
// degraded with no distance and no fallback is drawn.
func (e *Estimator) Estimate(ctx context.Context, origin, destination string) models.DistanceEstimate {
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destination) == "" {
		metrics.RouteEstimates.WithLabelValues("missing_location").Inc()
		return models.DistanceEstimate{
			Degraded: true,
			Error:    MissingLocationMessage,
		}
	}

	start := time.Now()
	r, err := e.call(ctx, origin, destination)
	metrics.RouteEstimateDuration.Observe(time.Since(start).Seconds())

	// The caller gave up; nobody will read a synthetic answer.
	if ctx.Err() != nil {
		metrics.RouteEstimates.WithLabelValues("cancelled").Inc()
		e.logger.Debug("Route estimate abandoned", map[string]interface{}{
			"origin":      origin,
			"destination": destination,
			"error":       ctx.Err().Error(),
		})
		return models.DistanceEstimate{Degraded: true}
	}

	if err == nil {
		err = validate(r)
	}
	if err != nil {
		return e.fallback(origin, destination, err)
	}

	metrics.RouteEstimates.WithLabelValues("ok").Inc()
	return models.DistanceEstimate{
		DistanceKm:    &r.DistanceKm,
		TravelMinutes: &r.TravelMinutes,
	}
}

type callResult struct {
	route Route
	err   error
}

// call races the service against the timeout. The result channel is buffered
// so a service that returns after the deadline does not leak its goroutine.
func (e *Estimator) call(ctx context.Context, origin, destination string) (Route, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		r, err := e.service.Estimate(callCtx, origin, destination)
		done <- callResult{route: r, err: err}
	}()

	select {
	case res := <-done:
		return res.route, res.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Route{}, apperrors.NewRouteServiceTimeoutError(e.timeout)
		}
		return Route{}, callCtx.Err()
	}
}

var errMalformed = errors.New("malformed route response")

func validate(r Route) error {
	for _, v := range []float64{r.DistanceKm, r.TravelMinutes} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: distance=%v minutes=%v", errMalformed, r.DistanceKm, r.TravelMinutes)
		}
	}
	return nil
}

func (e *Estimator) fallback(origin, destination string, cause error) models.DistanceEstimate {
	outcome := "fallback_error"
	switch {
	case apperrors.HasCode(cause, apperrors.ErrCodeRouteServiceTimeout):
		outcome = "fallback_timeout"
	case errors.Is(cause, errMalformed):
		outcome = "fallback_malformed"
	}
	metrics.RouteEstimates.WithLabelValues(outcome).Inc()

	km, minutes := e.synthetic()
	e.logger.Warn("Route estimate degraded, using fallback", map[string]interface{}{
		"origin":        origin,
		"destination":   destination,
		"outcome":       outcome,
		"error":         cause.Error(),
		"distanceKm":    km,
		"travelMinutes": minutes,
	})

	return models.DistanceEstimate{
		DistanceKm:    &km,
		TravelMinutes: &minutes,
		Degraded:      true,
	}
}

// synthetic draws a distance in [5, 45) with one decimal and a whole number
// of minutes in [10, 60). Both are floored rather than rounded to the nearest
// step, so a draw near the top never lands on 45 km or 60 minutes.
func (e *Estimator) synthetic() (float64, float64) {
	km := math.Floor((fallbackMinKm+e.random()*(fallbackMaxKm-fallbackMinKm))*10) / 10
	minutes := math.Floor(fallbackMinMinutes + e.random()*(fallbackMaxMinutes-fallbackMinMinutes))
	// r*(max-min) can round up to max for r just below 1.
	return math.Min(km, fallbackMaxKm-0.1), math.Min(minutes, fallbackMaxMinutes-1)
}
