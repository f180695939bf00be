package remote

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Runner runs one shell command line to completion.
type Runner interface {
	// Run returns the combined output. A command that exits non-zero is
	// reported as a *CommandError.
	Run(ctx context.Context, command string) ([]byte, error)
}

// ShellRunner interprets command lines with a POSIX shell interpreter and
// executes the programs they name.
type ShellRunner struct {
	output io.Writer
}

var _ Runner = (*ShellRunner)(nil)

// NewShellRunner returns a runner that also copies command output to w
// when w is not nil.
func NewShellRunner(w io.Writer) *ShellRunner {
	return &ShellRunner{output: w}
}

func (r *ShellRunner) Run(ctx context.Context, command string) ([]byte, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, &CommandError{Command: command, ExitStatus: -1, Err: errors.Wrap(err, "parse command")}
	}

	var buf bytes.Buffer
	var out io.Writer = &buf
	if r.output != nil {
		out = io.MultiWriter(&buf, r.output)
	}

	runner, err := interp.New(interp.StdIO(nil, out, out))
	if err != nil {
		return nil, &CommandError{Command: command, ExitStatus: -1, Err: err}
	}

	err = runner.Run(ctx, file)
	if err == nil {
		return buf.Bytes(), nil
	}

	if status, ok := interp.IsExitStatus(err); ok {
		return buf.Bytes(), &CommandError{Command: command, ExitStatus: int(status), Output: buf.Bytes()}
	}
	return buf.Bytes(), &CommandError{Command: command, ExitStatus: -1, Output: buf.Bytes(), Err: err}
}
