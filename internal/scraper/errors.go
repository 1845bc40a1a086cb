package scraper

import (
	"errors"
	"fmt"
)

// ErrLimitReached is returned once the upload quota latch is set.
var ErrLimitReached = errors.New("upload limit reached")

// PolicyDrop is an intentional discard of a document. It is not a failure.
type PolicyDrop struct {
	Stage  string
	Reason string
}

func (d *PolicyDrop) Error() string {
	return fmt.Sprintf("%s: dropped: %s", d.Stage, d.Reason)
}

// Fault is an unexpected failure while processing a document.
type Fault struct {
	Stage string
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Drop builds a PolicyDrop.
func Drop(stage, reason string) error {
	return &PolicyDrop{Stage: stage, Reason: reason}
}

// NewFault wraps err as a Fault raised by stage.
func NewFault(stage string, err error) error {
	return &Fault{Stage: stage, Err: err}
}

// Faultf formats a Fault raised by stage.
func Faultf(stage, format string, args ...any) error {
	return &Fault{Stage: stage, Err: fmt.Errorf(format, args...)}
}

// IsDrop reports whether err is a PolicyDrop.
func IsDrop(err error) bool {
	var drop *PolicyDrop
	return errors.As(err, &drop)
}
