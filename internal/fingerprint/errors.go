package fingerprint

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableSource is reported when a source cannot be opened or read.
	ErrUnreadableSource = errors.New("unreadable source")

	// ErrCorruptSource is reported when the bytes that can be read disagree
	// with the declared length of the source.
	ErrCorruptSource = errors.New("corrupt source")
)

// SourceError attributes a fingerprinting failure to a source.
// It matches its Kind (ErrUnreadableSource or ErrCorruptSource) under errors.Is.
type SourceError struct {
	Path string
	Kind error
	Err  error
}

func (e *SourceError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unreadable(err error) error {
	return &SourceError{Kind: ErrUnreadableSource, Err: err}
}

func corrupt(format string, args ...any) error {
	return &SourceError{Kind: ErrCorruptSource, Err: fmt.Errorf(format, args...)}
}

// withPath fills in the path of a SourceError produced below the file layer.
func withPath(err error, path string) error {
	var se *SourceError
	if errors.As(err, &se) && se.Path == "" {
		se.Path = path
	}
	return err
}
