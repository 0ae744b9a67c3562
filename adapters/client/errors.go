package client

import "fmt"

// TransportError reports a failed exchange: a connection error, a non-2xx
// status without a decodable error body, or a success body that was not
// valid JSON. Transport errors are retried.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		if e.Status != 0 {
			return fmt.Sprintf("transport failure (status %d): %v", e.Status, e.Err)
		}
		return fmt.Sprintf("transport failure: %v", e.Err)
	}
	return fmt.Sprintf("transport failure: status %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a successfully decoded error response. It is never
// retried: the server answered, it just said no.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d (%s): %s", e.Status, e.Code, e.Message)
}

// DecodeError reports a well-formed response missing an expected key or
// carrying an unexpected shape. Decode errors are not retried.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Reason
}
