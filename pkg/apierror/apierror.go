package apierror

import "fmt"

// APIError is the error shape the console API sends to its UI. Cause keeps
// the underlying error for logging and errors.Is checks.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Cause      error  `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Wrap(err error, code string, message string, status int) *APIError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status, Cause: err}
}
