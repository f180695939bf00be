package remote

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// SSHAdapter copies single files over an SSH session and synchronizes
// directories by running rsync locally with ssh as its remote shell.
type SSHAdapter struct {
	config  *Config
	logger  *zap.Logger
	runner  Runner
	session *lazySession[ShellSession]
}

var _ Adapter = (*SSHAdapter)(nil)

// NewSSHAdapter returns an adapter for an SSH config. The connection is
// opened on first use; directory operations never open one because rsync
// makes its own.
func NewSSHAdapter(cfg *Config, opts ...Option) *SSHAdapter {
	o := newOptions(opts)
	dialer := o.shellDialer
	if dialer == nil {
		dialer = sshDialer{}
	}

	a := &SSHAdapter{
		config: cfg.clone(),
		logger: o.logger.With(zap.String("scheme", SchemeSSH), zap.String("host", cfg.Host)),
		runner: o.runner,
	}
	a.session = newLazySession(func() (ShellSession, error) {
		return a.openSession(dialer)
	})
	return a
}

func (a *SSHAdapter) openSession(dialer ShellDialer) (ShellSession, error) {
	target := a.config.sessionConfig()
	if target.Gateway == nil {
		a.logger.Debug("Opening session")
		s, err := dialer.Dial(target)
		if err != nil {
			return nil, mark(err, ErrConnection, "ssh session to %s", target.Host)
		}
		a.logger.Info("Session established")
		return s, nil
	}

	gw := target.Gateway
	a.logger.Debug("Opening gateway session", zap.String("gateway", gw.Host))
	gateway, err := dialer.DialGateway(gw)
	if err != nil {
		return nil, mark(err, ErrConnection, "ssh gateway %s", gw.Host)
	}
	s, err := gateway.Open(target)
	if err != nil {
		gateway.Close()
		return nil, mark(err, ErrConnection, "ssh session to %s through gateway %s", target.Host, gw.Host)
	}
	a.logger.Info("Session established through gateway", zap.String("gateway", gw.Host))
	return &tunneledSession{ShellSession: s, gateway: gateway}, nil
}

func (a *SSHAdapter) Get(remotePath, localPath string) error {
	s, err := a.session.get()
	if err != nil {
		return err
	}
	a.logger.Debug("Downloading file", zap.String("remote", remotePath), zap.String("local", localPath))
	if err := s.Download(remotePath, localPath); err != nil {
		return mark(err, ErrTransfer, "get %s", remotePath)
	}
	return nil
}

func (a *SSHAdapter) PutFile(localPath, remotePath string) error {
	s, err := a.session.get()
	if err != nil {
		return err
	}
	a.logger.Debug("Uploading file", zap.String("local", localPath), zap.String("remote", remotePath))
	if err := s.Upload(localPath, remotePath); err != nil {
		return mark(err, ErrTransfer, "put %s", remotePath)
	}
	return nil
}

// Delete removes remotePath recursively with rm -rf on the remote host.
func (a *SSHAdapter) Delete(remotePath string) error {
	s, err := a.session.get()
	if err != nil {
		return err
	}

	command := newCommandLine("rm").arg("-rf", remotePath).String()
	a.logger.Debug("Executing remote command", zap.String("command", command))

	status, out, err := s.Execute(command)
	if err != nil {
		return errors.Mark(&CommandError{Command: command, ExitStatus: -1, Output: out, Err: err}, ErrRemoteCommand)
	}
	if status != 0 {
		return errors.Mark(&CommandError{Command: command, ExitStatus: status, Output: out}, ErrRemoteCommand)
	}
	return nil
}

// GetDirectory mirrors the contents of remotePath into localPath, creating
// localPath first.
func (a *SSHAdapter) GetDirectory(remotePath, localPath string, exclude, include []string) error {
	if err := os.MkdirAll(localPath, 0755); err != nil {
		return mark(err, ErrSync, "create local directory %s", localPath)
	}
	return a.rsync(":"+remotePath+"/", localPath, exclude, include)
}

// PutDirectory mirrors the contents of localPath into remotePath.
func (a *SSHAdapter) PutDirectory(localPath, remotePath string, exclude, include []string) error {
	return a.rsync(localPath+"/", ":"+remotePath, exclude, include)
}

func (a *SSHAdapter) rsync(source, destination string, exclude, include []string) error {
	command := BuildRsyncCommand(a.config, source, destination, exclude, include)
	redacted := BuildRsyncCommand(a.config.redacted(), source, destination, exclude, include)

	a.logger.Info("Running rsync", zap.String("command", redacted))
	out, err := a.runner.Run(context.Background(), command)
	if err != nil {
		// Keep sshpass passwords out of the error text.
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			cmdErr.Command = redacted
		}
		a.logger.Error("rsync failed", zap.String("command", redacted), zap.ByteString("output", out), zap.Error(err))
		return errors.Mark(err, ErrSync)
	}
	a.logger.Debug("rsync finished", zap.ByteString("output", out))
	return nil
}

// Close closes the session, and its gateway, if one was opened.
func (a *SSHAdapter) Close() error {
	return a.session.close()
}
