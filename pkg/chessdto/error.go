package chessdto

const (
	CodeSessionNotFound  = "session_not_found"
	CodeTooManySessions  = "too_many_sessions"
	CodeProfileNotFound  = "profile_not_found"
	CodeInvalidRequest   = "invalid_request"
	CodeRequestTooLarge  = "request_too_large"
	CodeInternal         = "internal_error"
	CodeMethodNotAllowed = "method_not_allowed"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}
