package trustkit

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrGatewayRequired is returned by New when no API gateway is configured.
	ErrGatewayRequired = errors.New("trustkit: gateway is required")

	// ErrLoggedOut is returned by reads and mutations while a revoke-all
	// grace window is pending, between the cache clear and the forced logout.
	ErrLoggedOut = errors.New("trustkit: coordinator is logged out")

	// ErrDeviceNotFound is returned when a device id is not present in the
	// account's device list.
	ErrDeviceNotFound = errors.New("trustkit: device not found")

	// ErrInvalidTransition is returned when a trust action is attempted on a
	// device whose lifecycle state cannot legally reach the requested state.
	ErrInvalidTransition = errors.New("trustkit: invalid trust transition")

	// ErrNotRegistered is returned when an operation needs the current device
	// identity but RegisterCurrentDevice has not succeeded yet.
	ErrNotRegistered = errors.New("trustkit: current device not registered")

	// ErrMonitorStopped is returned by Poll on a stopped monitor.
	ErrMonitorStopped = errors.New("trustkit: monitor stopped")
)

// APIError is a non-2xx response from the identity service, classified by
// HTTP status. Transport failures are not APIErrors; they surface as wrapped
// network errors.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("trustkit: api error %d (%s)", e.Status, e.Message)
	}
	return fmt.Sprintf("trustkit: api error %d", e.Status)
}

// IsAuthorization reports whether err is a 401-class failure. Authorization
// failures on the session path are always treated as session invalidity.
func IsAuthorization(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

// IsConflict reports whether err is a 409, e.g. revoking an already-revoked
// device. Conflicts are surfaced but are a no-op on local state.
func IsConflict(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusConflict
}

// IsValidation reports whether err is a 4xx other than 401 and 409. The
// request was understood and rejected; no state changed.
func IsValidation(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status >= 400 && ae.Status < 500 &&
		ae.Status != http.StatusUnauthorized && ae.Status != http.StatusConflict
}

// IsTransport reports whether err is a network-level failure or a 5xx that
// survived the gateway's bounded retries. Transient; the caller may re-invoke
// the action. Failures local to the client (token acquisition, encoding,
// decoding) are final, not transport.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var fe *finalError
	if errors.As(err, &fe) {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status >= 500
	}
	return !errors.Is(err, ErrLoggedOut) &&
		!errors.Is(err, ErrDeviceNotFound) &&
		!errors.Is(err, ErrInvalidTransition) &&
		!errors.Is(err, ErrNotRegistered) &&
		!errors.Is(err, ErrMonitorStopped)
}
