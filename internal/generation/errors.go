package generation

import (
	"errors"
	"fmt"
)

// Messages shown in the chat when a request fails.
const (
	TransportFailureMessage = "There was a problem with the request. Please try again later."
	EndpointFailureMessage  = "An unexpected error occurred."
)

// Failure classes reported alongside the assistant turn.
const (
	FailureTransport = "transport"
	FailureEndpoint  = "endpoint"
)

var ErrEmptyOutput = errors.New("generator returned an empty reply")

// TransportError means the endpoint never produced a readable answer:
// connection failures, cancelled contexts and undecodable bodies.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("generation transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EndpointError is a failure the endpoint reported itself.
type EndpointError struct {
	StatusCode int
	Message    string
}

func (e *EndpointError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("generation endpoint: status %d", e.StatusCode)
	}
	return fmt.Sprintf("generation endpoint: status %d: %s", e.StatusCode, e.Message)
}

// Classify returns the failure class of err and the text to show the user.
// Errors from an in-process generator count as endpoint failures without a
// message of their own.
func Classify(err error) (failure, message string) {
	if err == nil {
		return "", ""
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return FailureTransport, TransportFailureMessage
	}

	var endpointErr *EndpointError
	if errors.As(err, &endpointErr) && endpointErr.Message != "" {
		return FailureEndpoint, endpointErr.Message
	}
	return FailureEndpoint, EndpointFailureMessage
}
