package remote

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// TransportAdapter moves single files over SFTP or FTP. Directory
// synchronization is not available on these transports.
type TransportAdapter struct {
	config  *Config
	logger  *zap.Logger
	session *lazySession[Session]
}

var _ Adapter = (*TransportAdapter)(nil)

// NewTransportAdapter returns an adapter for an SFTP or FTP config. The
// connection is opened on first use.
func NewTransportAdapter(cfg *Config, opts ...Option) *TransportAdapter {
	o := newOptions(opts)
	dialer := o.fileDialer
	if dialer == nil {
		dialer = fileDialer{}
	}

	a := &TransportAdapter{
		config: transportConfig(cfg),
		logger: o.logger.With(zap.String("scheme", cfg.Scheme), zap.String("host", cfg.Host)),
	}
	a.session = newLazySession(func() (Session, error) {
		a.logger.Debug("Opening session", zap.String("port", a.config.Port))
		s, err := dialer.Dial(a.config)
		if err != nil {
			return nil, mark(err, ErrConnection, "%s session to %s", a.config.Scheme, a.config.Host)
		}
		a.logger.Info("Session established")
		return s, nil
	})
	return a
}

// transportConfig fills in the per-protocol defaults.
func transportConfig(cfg *Config) *Config {
	if cfg.Scheme == SchemeFTP {
		return cfg.withDefaultPort(defaultFTPPort)
	}
	return cfg.withDefaultPort(defaultSFTPPort)
}

func (a *TransportAdapter) Get(remotePath, localPath string) error {
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

func (a *TransportAdapter) PutFile(localPath, remotePath string) error {
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

func (a *TransportAdapter) Delete(remotePath string) error {
	s, err := a.session.get()
	if err != nil {
		return err
	}
	a.logger.Debug("Removing file", zap.String("remote", remotePath))
	if err := s.Remove(remotePath); err != nil {
		return mark(err, ErrTransfer, "delete %s", remotePath)
	}
	return nil
}

func (a *TransportAdapter) GetDirectory(remotePath, localPath string, exclude, include []string) error {
	return errors.Mark(errors.Newf("%s does not support directory sync", a.config.Scheme), ErrUnsupported)
}

func (a *TransportAdapter) PutDirectory(localPath, remotePath string, exclude, include []string) error {
	return errors.Mark(errors.Newf("%s does not support directory sync", a.config.Scheme), ErrUnsupported)
}

// Close closes the session if one was opened.
func (a *TransportAdapter) Close() error {
	return a.session.close()
}
