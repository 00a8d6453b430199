package apiclient

import "fmt"

// ConnectionError means the server could not be reached at all.
type ConnectionError struct {
	BaseURL string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("Server connection failed. Start the attendance server locally and make sure it is reachable at %s.", e.BaseURL)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RequestError is a non-2xx response. Message is the server's error string
// or a generic fallback.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

const fallbackMessage = "Request failed"
