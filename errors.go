package zenodo

import "fmt"

// ValidationError represents invalid local input, detected before any
// request is sent
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthError represents an authentication error
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// NotFoundError represents a resource not found error, for both missing
// local files and unknown remote deposits or records
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// StateError represents an operation that is invalid for the deposit's
// current state, such as publishing a deposit with no files
type StateError struct {
	DepositID int
	Reason    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("deposit %d: %s", e.DepositID, e.Reason)
}

// ServiceError represents a remote failure: a non-success response or a
// network fault
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("service error: %s", e.Message)
	}
	return fmt.Sprintf("service error (status %d): %s", e.StatusCode, e.Message)
}

// RateLimitError represents a rate limit error
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}
