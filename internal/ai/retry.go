package ai

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	appErrors "jobapplicator/internal/errors"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// maxBackoff caps the delay between attempts.
const maxBackoff = 30 * time.Second

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func executeWithRetry[T any](ctx context.Context, logger *appErrors.Logger, operation string, maxRetries int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoffFor(attempt)):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"successful_attempt", attempt+1)
			}
			return result, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", maxRetries+1)

	return zero, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, maxRetries, lastErr)
}

// backoffFor returns 2^(attempt-1) seconds plus up to 10% jitter.
func backoffFor(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(0)
	if jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1)); jitterMax.Sign() > 0 {
		if jitterBig, err := rand.Int(rand.Reader, jitterMax); err == nil {
			jitter = time.Duration(jitterBig.Int64())
		}
	}
	return min(baseDelay+jitter, maxBackoff)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Network errors (timeouts, refused connections) are transient
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
