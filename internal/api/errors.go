package api

import "fmt"

// ErrorKind classifies a failed request. The transport layer signals the kind
// explicitly so callers never have to sniff error message text.
type ErrorKind int

const (
	// KindConnection: the request never produced an HTTP response (DNS
	// failure, refused connection, timeout) or the circuit breaker is open.
	KindConnection ErrorKind = iota
	// KindUnauthorized: the server answered 401.
	KindUnauthorized
	// KindForbidden: the server answered 403.
	KindForbidden
	// KindRejected: the server rejected the request at the domain level (400/409).
	KindRejected
	// KindServer: the server answered 5xx.
	KindServer
	// KindStatus: any other non-2xx status.
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRejected:
		return "rejected"
	case KindServer:
		return "server"
	default:
		return "status"
	}
}

// Error is the failure type returned by Client.Do. Message carries the
// structured error text from the gateway body when one was present, otherwise
// a status-derived fallback.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
}

// connectionError builds a KindConnection error wrapping a transport failure.
func connectionError(err error) *Error {
	return &Error{Kind: KindConnection, Message: err.Error()}
}
