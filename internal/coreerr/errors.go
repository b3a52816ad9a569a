// Package coreerr provides the audio core's unified structured error type.
package coreerr

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind closes the set of error categories the core ever raises.
type Kind string

const (
	AudioDevice        Kind = "audio_device"
	ModelLoad          Kind = "model_load"
	Inference          Kind = "inference"
	InvalidTransition  Kind = "invalid_transition"
	InvalidInput       Kind = "invalid_input"
	Internal           Kind = "internal"
	Unavailable        Kind = "unavailable"
	Timeout            Kind = "timeout"
	ResourceExhausted  Kind = "resource_exhausted"
)

var grpcCodeMap = map[Kind]codes.Code{
	AudioDevice:       codes.Internal,
	ModelLoad:         codes.Unavailable,
	Inference:         codes.Internal,
	InvalidTransition: codes.FailedPrecondition,
	InvalidInput:      codes.InvalidArgument,
	Internal:          codes.Internal,
	Unavailable:       codes.Unavailable,
	Timeout:           codes.DeadlineExceeded,
	ResourceExhausted: codes.ResourceExhausted,
}

// Error is the core's structured error type: a closed Kind, a message, optional metadata, and
// an optional wrapped cause.
type Error struct {
	Kind     Kind
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// GRPCCode maps the error's Kind to a gRPC status code for the transcriber bridge.
func (e *Error) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Kind]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus lets a *Error be returned directly as a gRPC error (status.FromError recognizes it).
func (e *Error) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	detail := &errdetails.ErrorInfo{Reason: string(e.Kind), Metadata: e.Metadata}
	if withDetails, err := st.WithDetails(detail); err == nil {
		return withDetails
	}
	return st
}

// New creates an Error with no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/msg to an existing error as its cause.
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata attaches a key/value pair, creating the map on first use.
func (e *Error) WithMetadata(key, value string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError reconstructs an Error from a gRPC status, falling back to a best-effort mapping
// when the peer didn't attach ErrorInfo details.
func FromGRPCError(err error) *Error {
	st, ok := status.FromError(err)
	if !ok {
		return &Error{Kind: Internal, Message: err.Error(), Cause: err}
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return &Error{Kind: Kind(info.Reason), Message: st.Message(), Metadata: info.Metadata}
		}
	}
	return &Error{Kind: grpcToKind(st.Code()), Message: st.Message()}
}

func grpcToKind(c codes.Code) Kind {
	switch c {
	case codes.InvalidArgument:
		return InvalidInput
	case codes.Unavailable:
		return Unavailable
	case codes.DeadlineExceeded:
		return Timeout
	case codes.FailedPrecondition:
		return InvalidTransition
	case codes.ResourceExhausted:
		return ResourceExhausted
	case codes.Internal:
		return Internal
	default:
		return Internal
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// IsRetryable reports whether a failure of this kind is worth retrying through the resilience
// layer. Per the error handling design, only transient, non-data-loss conditions qualify.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case Unavailable, Timeout, ResourceExhausted:
		return true
	default:
		return false
	}
}
