package ferr

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Error is a wrapper around a Kind with a customizable message, modeled on
// disko's DriverError: callers can compare against a Kind with errors.Is or
// pull one out of a chain with errors.As, but still get a readable message
// by default.
type Error struct {
	Kind    Kind
	message string
	wrapped error
}

func (e *Error) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is makes errors.Is match two *Error values by Kind alone, ignoring their
// messages and wrapped errors, so errors.Is(err, New(SomeKind)) finds an
// *Error of that Kind anywhere in err's chain. Kind values themselves don't
// implement error and can't be passed to errors.Is directly.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New creates an *Error carrying kind with its default message.
func New(kind Kind) *Error {
	return &Error{Kind: kind, message: kind.String()}
}

// Newf creates an *Error carrying kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error carrying kind whose message also reports err, and
// whose Unwrap() chain reaches err.
func Wrap(kind Kind, err error) *Error {
	return &Error{
		Kind:    kind,
		message: fmt.Sprintf("%s: %s", kind.String(), err.Error()),
		wrapped: err,
	}
}

// KindOf extracts the Kind carried by err, walking the Unwrap() chain. It
// returns Success if err is nil, and Inval if err carries no Kind at all —
// callers that only care about the Volume-level error slot (Volume.Error)
// should prefer this over type-asserting directly.
func KindOf(err error) Kind {
	if err == nil {
		return Success
	}
	for {
		if fe, ok := err.(*Error); ok {
			return fe.Kind
		}
		unwrappable, ok := err.(interface{ Unwrap() error })
		if !ok {
			return Inval
		}
		inner := unwrappable.Unwrap()
		if inner == nil {
			return Inval
		}
		err = inner
	}
}

// Collector accumulates sub-errors from a multi-step, non-atomic write (e.g.
// writing the same FAT entry to every mirrored copy) and folds them into a
// single *multierror.Error. Spec section 7 is explicit that these writes are
// not transactional and may leave mirrors diverged; the collector exists so
// a caller can see exactly which steps failed instead of learning about only
// the first one.
type Collector struct {
	err *multierror.Error
}

// Add records a failure from one step of a multi-step write. A nil err is a
// no-op.
func (c *Collector) Add(step string, err error) {
	if err == nil {
		return
	}
	c.err = multierror.Append(c.err, fmt.Errorf("%s: %w", step, err))
}

// ErrorOrNil returns the aggregated error, or nil if every step succeeded.
func (c *Collector) ErrorOrNil() error {
	return c.err.ErrorOrNil()
}
