package remote

import (
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jlaffaye/ftp"
)

const ftpDialTimeout = 30 * time.Second

// ftpConn is the part of *ftp.ServerConn the session uses.
type ftpConn interface {
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	Delete(path string) error
	Quit() error
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(path string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(path)
}

type ftpSession struct {
	conn ftpConn
}

var _ Session = (*ftpSession)(nil)

// dialFTP logs in to cfg. The client always opens data connections from
// our side; Passive forces plain PASV instead of trying EPSV first, which
// is what servers behind NAT usually need.
func dialFTP(cfg *Config) (*ftpSession, error) {
	addr := address(cfg, defaultFTPPort)
	conn, err := ftp.Dial(addr,
		ftp.DialWithTimeout(ftpDialTimeout),
		ftp.DialWithDisabledEPSV(cfg.Passive),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to FTP server %s", addr)
	}

	user, password := cfg.User, cfg.Password
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	if err := conn.Login(user, password); err != nil {
		conn.Quit()
		return nil, errors.Wrapf(err, "failed to log in to FTP server %s as %s", addr, user)
	}
	return &ftpSession{conn: serverConn{conn}}, nil
}

func (s *ftpSession) Download(remotePath, localPath string) error {
	resp, err := s.conn.Retr(remotePath)
	if err != nil {
		return errors.Wrapf(err, "failed to retrieve remote file %s", remotePath)
	}
	defer resp.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create local file %s", localPath)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, resp); err != nil {
		return errors.Wrapf(err, "failed to read remote file %s", remotePath)
	}
	return dst.Close()
}

func (s *ftpSession) Upload(localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open local file %s", localPath)
	}
	defer src.Close()

	if err := s.conn.Stor(remotePath, src); err != nil {
		return errors.Wrapf(err, "failed to store remote file %s", remotePath)
	}
	return nil
}

func (s *ftpSession) Remove(remotePath string) error {
	if err := s.conn.Delete(remotePath); err != nil {
		return errors.Wrapf(err, "failed to delete remote file %s", remotePath)
	}
	return nil
}

func (s *ftpSession) Close() error {
	return s.conn.Quit()
}
