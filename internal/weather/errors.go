package weather

import (
	"errors"
	"fmt"
)

const (
	MsgGeolocationUnavailable = "Geolocation is not supported on this device"
	MsgGeolocationFailed      = "Failed to get your location"
)

var (
	// ErrGeolocationUnavailable is returned when no location capability is configured.
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	// ErrGeolocationDenied wraps every failure of a configured locator.
	ErrGeolocationDenied = errors.New("geolocation denied")
)

// ServiceError is an error reported by the weather service in its response body.
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// TransportError covers network failures and undecodable responses.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErrorf(format string, args ...any) error {
	return &TransportError{Err: fmt.Errorf(format, args...)}
}

// NewTransportError wraps err as a TransportError unless it already is one.
func NewTransportError(err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Err: err}
}

// ErrIncompletePayload is returned when a response has neither data nor an error object.
var ErrIncompletePayload = transportErrorf("incomplete weather payload")

// DisplayMessage maps an error to the string shown to the user.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *ServiceError
	switch {
	case errors.Is(err, ErrGeolocationUnavailable):
		return MsgGeolocationUnavailable
	case errors.Is(err, ErrGeolocationDenied):
		return MsgGeolocationFailed
	case errors.As(err, &se):
		return se.Message
	default:
		return err.Error()
	}
}
