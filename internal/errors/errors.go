package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/streakline/internal/logger"
)

// Kind classifies domain failures so callers can branch on them
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidSchedule
	KindDuplicateCompletion
	KindCircularDependency
	KindDependencyConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidSchedule:
		return "invalid schedule"
	case KindDuplicateCompletion:
		return "duplicate completion"
	case KindCircularDependency:
		return "circular dependency"
	case KindDependencyConflict:
		return "dependency conflict"
	case KindValidation:
		return "validation failed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a Kind
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidSchedule     = &Error{Kind: KindInvalidSchedule}
	ErrDuplicateCompletion = &Error{Kind: KindDuplicateCompletion}
	ErrCircularDependency  = &Error{Kind: KindCircularDependency}
	ErrDependencyConflict  = &Error{Kind: KindDependencyConflict}
	ErrValidation          = &Error{Kind: KindValidation}
)

// Error is a classified domain error
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...interface{}) error {
	return newf(KindNotFound, op, format, args...)
}

func InvalidSchedule(op, format string, args ...interface{}) error {
	return newf(KindInvalidSchedule, op, format, args...)
}

func DuplicateCompletion(op, format string, args ...interface{}) error {
	return newf(KindDuplicateCompletion, op, format, args...)
}

func CircularDependency(op, format string, args ...interface{}) error {
	return newf(KindCircularDependency, op, format, args...)
}

func DependencyConflict(op, format string, args ...interface{}) error {
	return newf(KindDependencyConflict, op, format, args...)
}

func Validation(op, format string, args ...interface{}) error {
	return newf(KindValidation, op, format, args...)
}

// Wrap attaches a kind and operation to an existing error
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
