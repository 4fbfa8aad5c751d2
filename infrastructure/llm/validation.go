package llm

import (
	"fmt"
	"net/url"
	"time"
)

// Request timeouts outside this range are clamped. The ceiling keeps a
// stuck provider from pinning a worker for the whole stage.
const (
	minTimeout = 1 * time.Second
	maxTimeout = 10 * time.Minute
)

// ValidateBaseURL validates and normalizes a base URL override.
// An empty string is valid and means the provider default should be used.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
	case "":
		return "", fmt.Errorf("URL must include a scheme (e.g., http:// or https://)")
	default:
		return "", fmt.Errorf("URL scheme must be http or https, but got: %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsed.String(), nil
}

// ValidateTimeout normalizes a configured timeout. Zero or negative
// means "use the default" and is passed through as zero; anything
// outside [minTimeout, maxTimeout] is clamped to the nearest bound.
func ValidateTimeout(timeout time.Duration) time.Duration {
	switch {
	case timeout <= 0:
		return 0
	case timeout < minTimeout:
		return minTimeout
	case timeout > maxTimeout:
		return maxTimeout
	default:
		return timeout
	}
}

// ClampFloat64 clamps val into [min, max].
func ClampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
