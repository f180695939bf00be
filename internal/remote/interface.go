package remote

import (
	"io"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Adapter is the transport-agnostic surface for moving files between the
// local machine and a remote host.
type Adapter interface {
	Get(remotePath, localPath string) error
	PutFile(localPath, remotePath string) error
	Delete(remotePath string) error
	GetDirectory(remotePath, localPath string, exclude, include []string) error
	PutDirectory(localPath, remotePath string, exclude, include []string) error
	Close() error
}

// Session is an authenticated handle to a remote host.
type Session interface {
	Download(remotePath, localPath string) error
	Upload(localPath, remotePath string) error
	Remove(remotePath string) error
	Close() error
}

// ShellSession is a Session that can also run commands on the remote host.
type ShellSession interface {
	Session
	// Execute runs command and returns its exit status and combined output.
	// A non-zero exit status is not reported through err.
	Execute(command string) (int, []byte, error)
}

// FileDialer opens file transfer sessions for SFTP and FTP configs.
type FileDialer interface {
	Dial(cfg *Config) (Session, error)
}

// ShellDialer opens SSH sessions, directly or through a gateway.
type ShellDialer interface {
	Dial(cfg *Config) (ShellSession, error)
	DialGateway(cfg *Config) (Gateway, error)
}

// Gateway is a session on an intermediate host through which target
// sessions are opened.
type Gateway interface {
	Open(target *Config) (ShellSession, error)
	Close() error
}

type options struct {
	logger      *zap.Logger
	runner      Runner
	fileDialer  FileDialer
	shellDialer ShellDialer
	output      io.Writer
}

// Option customizes an Adapter.
type Option func(*options)

// WithLogger sets the logger used by the adapter.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRunner replaces the process runner used for rsync.
func WithRunner(runner Runner) Option {
	return func(o *options) { o.runner = runner }
}

// WithFileDialer replaces the SFTP/FTP session dialer.
func WithFileDialer(dialer FileDialer) Option {
	return func(o *options) { o.fileDialer = dialer }
}

// WithShellDialer replaces the SSH session dialer.
func WithShellDialer(dialer ShellDialer) Option {
	return func(o *options) { o.shellDialer = dialer }
}

// WithOutput copies rsync output to w as it runs.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.runner == nil {
		o.runner = NewShellRunner(o.output)
	}
	return o
}

// NewAdapter returns the adapter variant for cfg.Scheme.
func NewAdapter(cfg *Config, opts ...Option) (Adapter, error) {
	if cfg == nil {
		return nil, errors.Mark(errors.New("config is nil"), ErrInvalidConfig)
	}

	switch cfg.Scheme {
	case SchemeSFTP, SchemeFTP, SchemeSSH:
	default:
		return nil, errors.Mark(errors.Newf("scheme %q is not one of ftp, sftp, ssh", cfg.Scheme), ErrUnsupportedScheme)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Scheme == SchemeSSH {
		return NewSSHAdapter(cfg, opts...), nil
	}
	return NewTransportAdapter(cfg, opts...), nil
}
