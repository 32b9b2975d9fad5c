package media

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMediaOpen reports that a source could not be opened or positioned.
	// It is fatal for the video being processed and nothing else.
	ErrMediaOpen = errors.New("media open failed")
	// ErrOutputCreate reports that a sink or still output could not be created.
	// It is fatal for the single still or clip being produced.
	ErrOutputCreate = errors.New("output create failed")
	// ErrMidStreamRead reports a read failure after the source opened
	// successfully. Callers treat it as an implicit end of stream.
	ErrMidStreamRead = errors.New("mid-stream read failed")
)

// IsMediaOpen reports whether err stems from a failed source open.
func IsMediaOpen(err error) bool { return errors.Is(err, ErrMediaOpen) }

// IsOutputCreate reports whether err stems from a failed output creation.
func IsOutputCreate(err error) bool { return errors.Is(err, ErrOutputCreate) }

// IsMidStreamRead reports whether err stems from a mid-stream read failure.
func IsMidStreamRead(err error) bool { return errors.Is(err, ErrMidStreamRead) }

// wrapped attaches a sentinel to a cause while keeping both visible to
// errors.Is and to the message.
type wrapped struct {
	kind  error
	cause error
	msg   string
}

func (w *wrapped) Error() string {
	if w.cause == nil {
		return w.msg + ": " + w.kind.Error()
	}
	return w.msg + ": " + w.kind.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Is(target error) bool { return target == w.kind }

func (w *wrapped) Unwrap() error { return w.cause }

func kindf(kind, cause error, format string, args ...interface{}) error {
	return errors.WithStack(&wrapped{kind: kind, cause: cause, msg: fmt.Sprintf(format, args...)})
}

// Wrapf tags cause with one of the sentinel kinds above. The result matches
// both kind and cause under errors.Is.
func Wrapf(kind, cause error, format string, args ...interface{}) error {
	return kindf(kind, cause, format, args...)
}
