package remote

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Supported values for Config.Scheme.
const (
	SchemeFTP  = "ftp"
	SchemeSFTP = "sftp"
	SchemeSSH  = "ssh"
)

// Supported values for Config.Implementation when Scheme is SchemeSFTP.
const (
	ImplementationSFTP = "sftp"
	ImplementationRig  = "rig"
)

const (
	defaultSFTPPort = "22"
	defaultFTPPort  = "21"
)

// Config describes one remote endpoint. Which fields matter depends on
// Scheme; fields that do not apply to a scheme are ignored.
type Config struct {
	Scheme   string
	Host     string `validate:"required"`
	Port     string `validate:"omitempty,number"`
	User     string
	Password string

	// Passive is only used by FTP.
	Passive bool

	// Gateway is only used by SSH. The target session is tunneled through
	// it and rsync reaches the target through a double ssh hop.
	Gateway *Config

	// RsyncOptions is appended verbatim to every rsync command line.
	RsyncOptions string

	KeyPath        string
	KnownHostsPath string
	IgnoreHostKey  bool
	SSHConfigPath  string
	Implementation string `validate:"omitempty,oneof=sftp rig"`
}

var validate = validator.New()

// Validate checks the fields every scheme needs.
func (c *Config) Validate() error {
	if c == nil {
		return errors.Mark(errors.New("config is nil"), ErrInvalidConfig)
	}
	if err := validate.Struct(c); err != nil {
		return errors.Mark(errors.Wrapf(err, "invalid %s config for %q", c.Scheme, c.Host), ErrInvalidConfig)
	}
	return nil
}

// clone returns a deep copy so adapters never observe caller mutation.
func (c *Config) clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Gateway = c.Gateway.clone()
	return &cp
}

// sessionConfig is the config handed to native SSH session dials. The
// password is left out: it is only used to build sshpass command lines.
func (c *Config) sessionConfig() *Config {
	cp := c.clone()
	cp.Password = ""
	if cp.Gateway != nil {
		cp.Gateway.Password = ""
	}
	return cp
}

// redacted returns a copy safe to render into log lines.
func (c *Config) redacted() *Config {
	cp := c.clone()
	for h := cp; h != nil; h = h.Gateway {
		if h.Password != "" {
			h.Password = "REDACTED"
		}
	}
	return cp
}

// withDefaultPort returns a copy with Port set to def when empty.
func (c *Config) withDefaultPort(def string) *Config {
	cp := c.clone()
	if cp.Port == "" {
		cp.Port = def
	}
	return cp
}
