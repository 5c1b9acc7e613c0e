// Package errors provides custom error types for the finking client and backend.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrRequestInFlight = errors.New("a request is already in flight")
	ErrNotInitialized  = errors.New("session not initialized")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrNoContent       = errors.New("no content in response")
	ErrMissingAPIKey   = errors.New("upstream API key is not configured")
)

// APIError represents a request that reached the server but did not succeed
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// NewAPIErrorWithBody creates a new APIError carrying the (truncated) response body
func NewAPIErrorWithBody(statusCode int, endpoint, message, body string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
		Body:       body,
	}
}

// NetworkError represents a transport-level failure: the server was never reached
// or the connection broke before a status line arrived
type NetworkError struct {
	Operation string
	Endpoint  string
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("network error during %s (%s): %v", e.Operation, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(operation string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Err: err}
}

// NewNetworkErrorWithEndpoint creates a new NetworkError for a specific endpoint
func NewNetworkErrorWithEndpoint(operation, endpoint string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Endpoint: endpoint, Err: err}
}

// AuthError represents an authentication failure against the upstream API
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed: check the API key"
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// Is allows comparison with other AuthErrors
func (e *AuthError) Is(target error) bool {
	_, ok := target.(*AuthError)
	return ok
}

// NewAuthError creates a new AuthError
func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

// TimeoutError represents a request timeout
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request timed out: %s", e.Message)
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{Message: message}
}

// RateLimitError represents an upstream rate limit response
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return "rate limit exceeded"
	}
	return fmt.Sprintf("rate limit exceeded: %s", e.Message)
}

// NewRateLimitError creates a new RateLimitError
func NewRateLimitError(message string) *RateLimitError {
	return &RateLimitError{Message: message}
}

// ParseError represents a response parsing error
type ParseError struct {
	Message string
	Path    string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// NewParseError creates a new ParseError
func NewParseError(message, path string) *ParseError {
	return &ParseError{Message: message, Path: path}
}

// ConfigError represents an invalid configuration value
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Key, e.Message)
}

// NewConfigError creates a new ConfigError
func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{Key: key, Message: message}
}

// GetHTTPStatus returns the HTTP status carried by err, or 0
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsAPIError reports whether err is (or wraps) an APIError
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsNetworkError reports whether err is (or wraps) a NetworkError
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsTimeoutError reports whether err is (or wraps) a TimeoutError
func IsTimeoutError(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// IsAuthError reports whether err is (or wraps) an AuthError
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsRateLimitError reports whether err is (or wraps) a RateLimitError
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// IsRejected reports whether err is one of the silent input rejections of a
// chat session (empty input or a request already in flight)
func IsRejected(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrRequestInFlight)
}

// IsConfigError reports whether err is (or wraps) a ConfigError
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
