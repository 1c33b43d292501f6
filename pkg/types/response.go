package types

// RequestIDHeader carries the request id between the CRM API and its callers.
const RequestIDHeader = "X-Request-Id"

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. RequestID repeats the response header so
// a caller can quote it when reporting a failed write.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
