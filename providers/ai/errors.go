package ai

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/leofalp/streamgate/internal/utils"
)

// Sentinel errors, checked with errors.Is.
var (
	// ErrConfiguration covers unknown provider ids and missing API keys.
	ErrConfiguration = errors.New("gateway: configuration error")

	// ErrUpstreamRejected means the provider answered with a non-2xx status.
	ErrUpstreamRejected = errors.New("gateway: upstream rejected request")

	// ErrStreamInterrupted means an open stream failed before its natural end.
	ErrStreamInterrupted = errors.New("gateway: stream interrupted")
)

// ConfigurationError is raised before any upstream call is made.
type ConfigurationError struct {
	Provider ProviderID
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Provider == "" {
		return e.Reason
	}
	return fmt.Sprintf("provider '%s': %s", e.Provider, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NewMissingKeyError reports a provider with no API key configured.
func NewMissingKeyError(provider ProviderID, envVar string) *ConfigurationError {
	return &ConfigurationError{
		Provider: provider,
		Reason:   fmt.Sprintf("API key not configured (set %s)", envVar),
	}
}

// UpstreamError is a non-2xx answer from a provider.
type UpstreamError struct {
	Provider   ProviderID
	StatusCode int
	Message    string          // Best-effort human-readable message
	Details    json.RawMessage // Raw body when it was JSON, else a JSON string of it
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider '%s' error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamRejected
}

// NewUpstreamError converts a rejected HTTP response into an UpstreamError.
func NewUpstreamError(provider ProviderID, statusErr *utils.HTTPStatusError) *UpstreamError {
	message := utils.ExtractErrorMessage(statusErr.Body, statusErr.ContentType)
	if message == "" {
		message = statusErr.Status
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", statusErr.StatusCode)
	}

	var details json.RawMessage
	if gjson.ValidBytes(statusErr.Body) {
		details = append(json.RawMessage(nil), statusErr.Body...)
	} else if len(statusErr.Body) > 0 {
		details, _ = json.Marshal(utils.TruncateStringDefault(string(statusErr.Body)))
	}

	return &UpstreamError{
		Provider:   provider,
		StatusCode: statusErr.StatusCode,
		Message:    message,
		Details:    details,
	}
}

// WrapRequestError maps DoPostStream failures to the gateway taxonomy: status
// errors become *UpstreamError, anything else is returned wrapped.
func WrapRequestError(provider ProviderID, err error) error {
	var statusErr *utils.HTTPStatusError
	if errors.As(err, &statusErr) {
		return NewUpstreamError(provider, statusErr)
	}
	return fmt.Errorf("%s stream request: %w", provider, err)
}

// MidStreamError is yielded by a ChatStream when the upstream fails after the
// stream opened. Usage holds the token counts reported before the failure.
type MidStreamError struct {
	Err   error
	Model string
	Usage Usage
}

func (e *MidStreamError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *MidStreamError) Unwrap() []error {
	return []error{ErrStreamInterrupted, e.Err}
}
