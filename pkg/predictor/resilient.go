package predictor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cardioml-web/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const modelInfoKey = "model-info"

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// ResilientClient wraps Client with a circuit breaker and a model info cache.
type ResilientClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker
	cache   *expirable.LRU[string, *domain.ModelInfo]
	logger  *logrus.Logger
}

// NewResilientClient builds the backend client used by the web server.
func NewResilientClient(cfg domain.BackendConfig, logger *logrus.Logger) *ResilientClient {
	client := NewClient(Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	})
	return newResilientClient(client, CircuitBreakerConfig{
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.Interval,
		Timeout:          cfg.CircuitBreaker.Timeout,
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
	}, cfg.ModelInfoTTL, logger)
}

func newResilientClient(client *Client, cb CircuitBreakerConfig, ttl time.Duration, logger *logrus.Logger) *ResilientClient {
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = 5
	}

	r := &ResilientClient{client: client, logger: logger}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "prediction-backend",
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cb.FailureThreshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	if ttl > 0 {
		r.cache = expirable.NewLRU[string, *domain.ModelInfo](1, nil, ttl)
	}
	return r
}

// isSuccessful keeps client-side failures from tripping the breaker: 4xx
// responses and abandoned requests say nothing about backend health.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var be *domain.BackendError
	if errors.As(err, &be) && be.StatusCode >= http.StatusBadRequest && be.StatusCode < http.StatusInternalServerError {
		return true
	}
	return false
}

// Health queries backend health through the circuit breaker
func (r *ResilientClient) Health(ctx context.Context) (*domain.HealthStatus, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Health(ctx)
	})
	if err != nil {
		return nil, wrapBreakerError(err)
	}
	return result.(*domain.HealthStatus), nil
}

// ModelInfo returns the cached model description, refreshing it when expired
func (r *ResilientClient) ModelInfo(ctx context.Context) (*domain.ModelInfo, error) {
	if r.cache != nil {
		if info, ok := r.cache.Get(modelInfoKey); ok {
			return info, nil
		}
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.ModelInfo(ctx)
	})
	if err != nil {
		return nil, wrapBreakerError(err)
	}

	info := result.(*domain.ModelInfo)
	if r.cache != nil {
		r.cache.Add(modelInfoKey, info)
	}
	return info, nil
}

// Predict issues exactly one prediction request through the circuit breaker
func (r *ResilientClient) Predict(ctx context.Context, req *domain.PredictionRequest) (*domain.PredictionResult, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Predict(ctx, req)
	})
	if err != nil {
		return nil, wrapBreakerError(err)
	}
	return result.(*domain.PredictionResult), nil
}

// BreakerState reports the circuit breaker state for health output.
func (r *ResilientClient) BreakerState() string {
	return r.breaker.State().String()
}

// InvalidateModelInfo drops the cached model description.
func (r *ResilientClient) InvalidateModelInfo() {
	if r.cache != nil {
		r.cache.Remove(modelInfoKey)
	}
}

func wrapBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.BackendError{Err: fmt.Errorf("prediction backend unavailable: %w", err)}
	}
	return err
}
