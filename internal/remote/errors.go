package remote

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error kinds. Every error returned by an Adapter is marked with exactly one
// of these and can be matched with errors.Is.
var (
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrConnection        = errors.New("connection failed")
	ErrTransfer          = errors.New("transfer failed")
	ErrRemoteCommand     = errors.New("remote command failed")
	ErrSync              = errors.New("sync failed")
	ErrUnsupported       = errors.New("operation not supported")
)

// CommandError reports a command that ran but exited non-zero, or that
// could not be started at all (ExitStatus is -1 then).
type CommandError struct {
	Command    string
	ExitStatus int
	Output     []byte
	Err        error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q exited with status %d: %v", e.Command, e.ExitStatus, e.Err)
	}
	return fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitStatus)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// HostKeyError reports a server host key that is missing from known_hosts or
// differs from the recorded one. KnownHostsLine is the entry that would accept it.
type HostKeyError struct {
	Host           string
	KeyType        string
	KeyFingerprint string
	KnownHostsLine string
	Err            error
}

func (e *HostKeyError) Error() string {
	return e.Err.Error()
}

func (e *HostKeyError) Unwrap() error {
	return e.Err
}

// mark wraps err with a message and tags it with kind.
func mark(err error, kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), kind)
}
