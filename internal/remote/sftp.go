package remote

import (
	"io"
	"os"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpSession moves files with the pkg/sftp client. conn is the SSH
// connection underneath, nil when the client was built on a bare pipe.
type sftpSession struct {
	client *sftp.Client
	conn   io.Closer
}

var _ Session = (*sftpSession)(nil)

// dialSFTP connects to cfg and starts the sftp subsystem.
func dialSFTP(cfg *Config) (*sftpSession, error) {
	client, err := dialSSH(cfg)
	if err != nil {
		return nil, err
	}
	session, err := newSFTPSession(client.Client)
	if err != nil {
		client.Close()
		return nil, err
	}
	session.conn = client
	return session, nil
}

// newSFTPSession starts the sftp subsystem on client. The session does not
// own client unless conn is set.
func newSFTPSession(client *ssh.Client) (*sftpSession, error) {
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create SFTP client")
	}
	return &sftpSession{client: sftpClient}, nil
}

// Download copies the remote file to localPath, replacing it.
func (s *sftpSession) Download(remotePath, localPath string) error {
	src, err := s.client.Open(remotePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open remote file %s", remotePath)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create local file %s", localPath)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, "failed to read remote file %s", remotePath)
	}
	return dst.Close()
}

// Upload copies localPath to the remote file, replacing it. Missing parent
// directories are created.
func (s *sftpSession) Upload(localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open local file %s", localPath)
	}
	defer src.Close()

	if dir := path.Dir(remotePath); dir != "/" && dir != "." {
		if err := s.client.MkdirAll(dir); err != nil {
			return errors.Wrapf(err, "failed to create remote directory %s", dir)
		}
	}

	dst, err := s.client.Create(remotePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create remote file %s", remotePath)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, "failed to write to remote file %s", remotePath)
	}
	return dst.Close()
}

func (s *sftpSession) Remove(remotePath string) error {
	if err := s.client.Remove(remotePath); err != nil {
		return errors.Wrapf(err, "failed to delete remote file %s", remotePath)
	}
	return nil
}

// Close closes the SFTP and SSH connections.
func (s *sftpSession) Close() error {
	var errs error
	if err := s.client.Close(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if errs != nil {
		return errors.Wrap(errs, "errors closing connections")
	}
	return nil
}
