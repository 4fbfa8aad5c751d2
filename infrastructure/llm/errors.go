package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the client and provider implementations.
var (
	// ErrEmptyAPIKey means a provider was configured without an API key.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse means the provider returned an empty or nil body.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice means the response carried no usable choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrInvalidModel means the requested model is unknown or inaccessible.
	ErrInvalidModel = errors.New("invalid or inaccessible model")
)

// ErrorType categorizes a provider error so callers can standardize
// handling, in particular retryability decisions.
type ErrorType int

const (
	// ErrorTypeUnknown is an error of an undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication is an authentication or authorization problem,
	// for example an invalid API key.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit means a provider rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest is a malformed request or invalid parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound means a requested resource, typically a model,
	// does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError is a failure on the provider's side.
	ErrorTypeServerError
	// ErrorTypeContentPolicy means the request was blocked by a content policy.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork is a client-side network problem.
	ErrorTypeNetwork
	// ErrorTypeTimeout means the request exceeded its deadline.
	ErrorTypeTimeout
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

// String returns the snake_case label for the error type, or "" for
// the unknown type.
func (t ErrorType) String() string { return errorTypeNames[t] }

// ProviderError normalizes provider-specific failures into a common
// structured form carrying the classified type and relevant metadata.
type ProviderError struct {
	// Type classifies the error into a standard category.
	Type ErrorType
	// Provider names the LLM provider that produced the error.
	Provider string
	// StatusCode holds the HTTP status from the provider response, when applicable.
	StatusCode int
	// Message is the user-facing error message.
	Message string
	// WrappedError holds the original underlying error for chaining.
	WrappedError error
}

// Error satisfies the error interface.
func (e *ProviderError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Provider)
	sb.WriteString(" error")

	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.StatusCode)
	}
	if name := e.Type.String(); name != "" {
		fmt.Fprintf(&sb, " [%s]", name)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.WrappedError != nil {
		fmt.Fprintf(&sb, ": %v", e.WrappedError)
	}

	return sb.String()
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *ProviderError) Unwrap() error { return e.WrappedError }

// IsRetryable reports whether the failed request may succeed on retry.
// Rate limits, server errors, network problems, and timeouts are
// transient; everything else is not.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewProviderError builds a standardized error from a provider-specific
// failure.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier turns provider-specific errors into ProviderError
// instances using context such as HTTP status codes.
type ErrorClassifier struct {
	// Provider names the LLM provider this classifier works for.
	Provider string
}

// ClassifyHTTPError classifies an error by its HTTP status code.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	mk := func(t ErrorType, msg string) *ProviderError {
		return NewProviderError(ec.Provider, t, statusCode, msg, err)
	}

	switch statusCode {
	case 401, 403:
		return mk(ErrorTypeAuthentication, ec.Provider+" authentication failed")
	case 429:
		return mk(ErrorTypeRateLimit, ec.Provider+" rate limit exceeded")
	case 400:
		return mk(ErrorTypeBadRequest, message)
	case 404:
		return mk(ErrorTypeNotFound, message)
	case 500, 502, 503, 504:
		return mk(ErrorTypeServerError, message)
	}

	switch {
	case statusCode >= 400 && statusCode < 500:
		return mk(ErrorTypeBadRequest, message)
	case statusCode >= 500:
		return mk(ErrorTypeServerError, message)
	}
	return mk(ErrorTypeUnknown, message)
}

// ClassifyContextError classifies context cancellation and deadline
// errors. Deadline expiry maps to the timeout type so retry logic
// treats it as transient; explicit cancellation maps to network.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}
