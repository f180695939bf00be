package remote

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/ssh"
)

// sshSession runs remote commands on an SSH connection and copies single
// files over the sftp subsystem of the same connection.
type sshSession struct {
	client *sshConn
	files  *lazySession[*sftpSession]
}

var _ ShellSession = (*sshSession)(nil)

func newSSHSession(client *sshConn) *sshSession {
	s := &sshSession{client: client}
	s.files = newLazySession(func() (*sftpSession, error) {
		return newSFTPSession(client.Client)
	})
	return s
}

func (s *sshSession) Execute(command string) (int, []byte, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return -1, nil, errors.Wrap(err, "failed to open SSH session")
	}
	defer session.Close()

	out, err := session.CombinedOutput(command)
	if err == nil {
		return 0, out, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), out, nil
	}
	return -1, out, err
}

func (s *sshSession) Download(remotePath, localPath string) error {
	files, err := s.files.get()
	if err != nil {
		return err
	}
	return files.Download(remotePath, localPath)
}

func (s *sshSession) Upload(localPath, remotePath string) error {
	files, err := s.files.get()
	if err != nil {
		return err
	}
	return files.Upload(localPath, remotePath)
}

func (s *sshSession) Remove(remotePath string) error {
	files, err := s.files.get()
	if err != nil {
		return err
	}
	return files.Remove(remotePath)
}

func (s *sshSession) Close() error {
	return errors.CombineErrors(s.files.close(), s.client.Close())
}

// tunneledSession is a target session opened through a gateway. Closing it
// closes the gateway too.
type tunneledSession struct {
	ShellSession
	gateway Gateway
}

func (s *tunneledSession) Close() error {
	return errors.CombineErrors(s.ShellSession.Close(), s.gateway.Close())
}

type sshGateway struct {
	client *sshConn
}

var _ Gateway = (*sshGateway)(nil)

func (g *sshGateway) Open(target *Config) (ShellSession, error) {
	client, err := dialSSHThrough(g.client.Client, target)
	if err != nil {
		return nil, err
	}
	return newSSHSession(client), nil
}

func (g *sshGateway) Close() error {
	return g.client.Close()
}

// sshDialer is the default ShellDialer.
type sshDialer struct{}

var _ ShellDialer = sshDialer{}

func (sshDialer) Dial(cfg *Config) (ShellSession, error) {
	client, err := dialSSH(cfg)
	if err != nil {
		return nil, err
	}
	return newSSHSession(client), nil
}

func (sshDialer) DialGateway(cfg *Config) (Gateway, error) {
	client, err := dialSSH(cfg)
	if err != nil {
		return nil, err
	}
	return &sshGateway{client: client}, nil
}

// fileDialer is the default FileDialer. It picks the session type from the
// scheme and, for SFTP, the configured implementation.
type fileDialer struct{}

var _ FileDialer = fileDialer{}

func (fileDialer) Dial(cfg *Config) (Session, error) {
	switch {
	case cfg.Scheme == SchemeFTP:
		return dialFTP(cfg)
	case cfg.Implementation == ImplementationRig:
		return dialRig(cfg)
	default:
		return dialSFTP(cfg)
	}
}
