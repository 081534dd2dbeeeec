package baidu

import "fmt"

// AuthError means the token endpoint rejected the credential request.
// Message carries the server-reported error message.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("baidu token request rejected: %s", e.Message)
}

// APIError means the face API rejected a call (status >= 300).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("baidu face api error (status %d): %s", e.StatusCode, e.Message)
}

// NetworkError covers transport failures and timeouts. The externally visible
// kind is coarse; the underlying cause and a timeout flag are kept for logging.
type NetworkError struct {
	Cause   error
	Timeout bool
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return "network error on baidu face api: timeout"
	}
	return "network error on baidu face api"
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}
