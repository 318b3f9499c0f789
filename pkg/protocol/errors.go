package protocol

// Machine-readable error codes carried on error events and HTTP error bodies.
const (
	ErrInvalidRequest       = "invalid_request"
	ErrUnauthorized         = "unauthorized"
	ErrUnsupportedModel     = "unsupported_model"
	ErrMissingAPIKey        = "missing_api_key"
	ErrCredentialUnreadable = "credential_unreadable"
	ErrExecutionFailed      = "execution_failed"
	ErrInternal             = "internal"
)

// RequireActionAPIKey marks a missing-key error as user-actionable.
const RequireActionAPIKey = "api_key_input"

// HTTP headers set on missing-key responses.
const (
	HeaderErrorCode = "X-Error-Code"
	HeaderProvider  = "X-Provider"
)

// ErrorShape is the HTTP error body: {"error": {...}}.
type ErrorShape struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

// ErrorBody wraps ErrorShape for JSON responses.
type ErrorBody struct {
	Error ErrorShape `json:"error"`
}
