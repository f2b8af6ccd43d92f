// Package errors provides the structured error type shared by the detector,
// the module engine and the reaction modules.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code identifies what went wrong.
type Code string

const (
	CodeUnknown     Code = "UNKNOWN"
	CodeInternal    Code = "INTERNAL"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeTimeout     Code = "TIMEOUT"
	CodeCancelled   Code = "CANCELLED"

	// Per-cycle failures
	CodeDisplayEnumFailed Code = "DISPLAY_ENUM_FAILED"
	CodeCaptureFailed     Code = "CAPTURE_FAILED"
	CodeCompareFailed     Code = "COMPARE_FAILED"

	// Module lifecycle
	CodeModuleInitFailed     Code = "MODULE_INIT_FAILED"
	CodeModuleDispatchFailed Code = "MODULE_DISPATCH_FAILED"
	CodeModuleSuspended      Code = "MODULE_SUSPENDED"

	// Startup configuration
	CodeConfigInvalid   Code = "CONFIG_INVALID"
	CodeConfigMissing   Code = "CONFIG_MISSING"
	CodeTemplateInvalid Code = "TEMPLATE_INVALID"
)

// Kind separates failures the loop recovers from and failures that abort startup.
type Kind int

const (
	Transient Kind = iota
	Fatal
)

func (k Kind) String() string {
	if k == Fatal {
		return "fatal"
	}
	return "transient"
}

var fatalCodes = map[Code]bool{
	CodeModuleInitFailed: true,
	CodeConfigInvalid:    true,
	CodeConfigMissing:    true,
	CodeTemplateInvalid:  true,
}

var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:              codes.Unknown,
	CodeInternal:             codes.Internal,
	CodeUnavailable:          codes.Unavailable,
	CodeTimeout:              codes.DeadlineExceeded,
	CodeCancelled:            codes.Canceled,
	CodeCaptureFailed:        codes.Internal,
	CodeCompareFailed:        codes.Internal,
	CodeModuleDispatchFailed: codes.Internal,
	CodeModuleSuspended:      codes.Unavailable,
	CodeConfigInvalid:        codes.InvalidArgument,
	CodeConfigMissing:        codes.FailedPrecondition,
}

// AppError is the base error type with structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// Kind reports whether the error should abort startup.
func (e *AppError) Kind() Kind {
	if fatalCodes[e.Code] {
		return Fatal
	}
	return Transient
}

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus lets status.FromError recognise an AppError.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// FromGRPCError converts an error returned by a gRPC call.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}
	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.Unavailable:
		return CodeUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	case codes.InvalidArgument:
		return CodeConfigInvalid
	case codes.FailedPrecondition:
		return CodeConfigMissing
	default:
		return CodeUnknown
	}
}

// As finds the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode checks if an error chain carries a specific code.
func IsCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsFatal reports whether err must stop the process. Joined errors are fatal
// if any member is.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if IsFatal(e) {
				return true
			}
		}
		return false
	}
	appErr, ok := As(err)
	return ok && appErr.Kind() == Fatal
}

// IsTransient reports whether err is a recoverable per-cycle failure.
func IsTransient(err error) bool {
	return err != nil && !IsFatal(err)
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout:
		return true
	default:
		return false
	}
}
