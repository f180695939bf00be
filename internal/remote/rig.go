package remote

import (
	"context"
	"os"
	"path"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/k0sproject/rig/v2"
	"github.com/k0sproject/rig/v2/protocol/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// rigSession moves files through k0sproject/rig's remote filesystem. It is
// the alternative SFTP-scheme implementation selected by
// Config.Implementation.
type rigSession struct {
	client *rig.Client
}

var _ Session = (*rigSession)(nil)

func dialRig(cfg *Config) (*rigSession, error) {
	cfg = resolve(cfg)

	portString := cfg.Port
	if portString == "" {
		portString = defaultSFTPPort
	}
	port, err := strconv.Atoi(portString)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid port %q", cfg.Port)
	}

	user := cfg.User
	if user == "" {
		user = "root"
	}

	sshConfig := ssh.Config{
		Address: cfg.Host,
		User:    user,
		Port:    port,
	}

	if cfg.Password != "" {
		sshConfig.AuthMethods = []gossh.AuthMethod{gossh.Password(cfg.Password)}
	}

	if cfg.KeyPath != "" {
		keyPath := expandPath(cfg.KeyPath)
		sshConfig.KeyPath = &keyPath
	}

	conn, err := sshConfig.Connection()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create SSH connection config")
	}

	client, err := rig.NewClient(rig.WithConnection(conn))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create rig client")
	}

	if err := client.Connect(context.Background()); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to SSH server %s:%d", cfg.Host, port)
	}

	return &rigSession{client: client}, nil
}

func (s *rigSession) Download(remotePath, localPath string) error {
	content, err := s.client.FS().ReadFile(remotePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read remote file %s", remotePath)
	}
	if err := os.WriteFile(localPath, content, 0644); err != nil {
		return errors.Wrapf(err, "failed to write local file %s", localPath)
	}
	return nil
}

func (s *rigSession) Upload(localPath, remotePath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to stat local file %s", localPath)
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read local file %s", localPath)
	}
	fsys := s.client.FS()
	if dir := path.Dir(remotePath); dir != "/" && dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create remote directory %s", dir)
		}
	}
	if err := fsys.WriteFile(remotePath, content, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "failed to write remote file %s", remotePath)
	}
	return nil
}

func (s *rigSession) Remove(remotePath string) error {
	if err := s.client.FS().Remove(remotePath); err != nil {
		return errors.Wrapf(err, "failed to delete remote file %s", remotePath)
	}
	return nil
}

func (s *rigSession) Close() error {
	s.client.Disconnect()
	return nil
}
