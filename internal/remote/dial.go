package remote

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const sshDialTimeout = 30 * time.Second

// resolve applies ~/.ssh/config settings to a copy of cfg. Values set
// explicitly in cfg win over the file.
func resolve(cfg *Config) *Config {
	cp := cfg.clone()
	if sshConfig, err := ParseSSHConfig(cp.SSHConfigPath); err == nil {
		sshConfig.ApplyToConfig(cfg.Host, cp)
	}
	return cp
}

// sshConn is an SSH client plus the agent connection its auth methods sign
// through. The agent connection is closed with the client.
type sshConn struct {
	*ssh.Client
	agent io.Closer
}

func (c *sshConn) Close() error {
	err := c.Client.Close()
	if c.agent != nil {
		err = errors.CombineErrors(err, c.agent.Close())
	}
	return err
}

// clientConfig builds the x/crypto/ssh client config for cfg. The returned
// closer is the agent connection, nil when no agent is used; the caller owns
// it from here on.
func clientConfig(cfg *Config) (_ *ssh.ClientConfig, _ io.Closer, err error) {
	var authMethods []ssh.AuthMethod

	// Try password authentication first if provided
	if cfg.Password != "" {
		authMethods = append(authMethods, ssh.Password(cfg.Password))
	}

	agentAuth, agentConn := loadSSHAgent()
	if agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
		defer func() {
			if err != nil {
				agentConn.Close()
			}
		}()
	}

	if cfg.KeyPath != "" {
		key, err := os.ReadFile(expandPath(cfg.KeyPath))
		if err == nil {
			signer, err := ssh.ParsePrivateKey(key)
			if err == nil {
				authMethods = append(authMethods, ssh.PublicKeys(signer))
			}
			// Passphrase-protected keys are left to the agent.
		}
	}

	if len(authMethods) == 0 {
		authMethods = loadDefaultKeys()
	}

	if len(authMethods) == 0 {
		return nil, nil, errors.New("no SSH authentication methods available")
	}

	hostKeyCallback, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, nil, err
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         sshDialTimeout,
		// Follow OpenSSH key algorithm precedence
		HostKeyAlgorithms: []string{
			ssh.KeyAlgoED25519,
			ssh.KeyAlgoECDSA256,
			ssh.KeyAlgoECDSA384,
			ssh.KeyAlgoECDSA521,
			ssh.KeyAlgoRSASHA512,
			ssh.KeyAlgoRSASHA256,
			ssh.KeyAlgoRSA,
		},
	}, agentConn, nil
}

func address(cfg *Config, defaultPort string) string {
	port := cfg.Port
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(cfg.Host, port)
}

// dialSSH opens an SSH connection to cfg.
func dialSSH(cfg *Config) (*sshConn, error) {
	cfg = resolve(cfg)
	sshConfig, agentConn, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := address(cfg, defaultSFTPPort)
	client, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		closeAgent(agentConn)
		return nil, errors.Wrapf(err, "failed to connect to SSH server %s", addr)
	}
	return &sshConn{Client: client, agent: agentConn}, nil
}

// dialSSHThrough opens an SSH connection to target tunneled through the
// already connected gateway client.
func dialSSHThrough(gateway *ssh.Client, target *Config) (*sshConn, error) {
	target = resolve(target)
	sshConfig, agentConn, err := clientConfig(target)
	if err != nil {
		return nil, err
	}

	addr := address(target, defaultSFTPPort)
	conn, err := gateway.Dial("tcp", addr)
	if err != nil {
		closeAgent(agentConn)
		return nil, errors.Wrapf(err, "failed to dial %s through gateway", addr)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		closeAgent(agentConn)
		return nil, errors.Wrapf(err, "failed to create SSH connection to %s through gateway", addr)
	}
	return &sshConn{Client: ssh.NewClient(c, chans, reqs), agent: agentConn}, nil
}

func closeAgent(c io.Closer) {
	if c != nil {
		c.Close()
	}
}

// loadDefaultKeys tries to load default SSH keys from ~/.ssh
// Note: This only loads unencrypted keys. Passphrase-protected keys should be
// handled by the SSH agent.
func loadDefaultKeys() []ssh.AuthMethod {
	var authMethods []ssh.AuthMethod

	// OpenSSH key precedence order
	defaultKeys := []string{"id_ed25519", "id_ecdsa", "id_rsa"}
	home, err := os.UserHomeDir()
	if err != nil {
		return authMethods
	}

	for _, keyName := range defaultKeys {
		key, err := os.ReadFile(filepath.Join(home, ".ssh", keyName))
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			continue
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	return authMethods
}

// loadSSHAgent returns nils when no agent is reachable. Signing goes through
// conn, so it has to stay open as long as the SSH client using the method.
func loadSSHAgent() (ssh.AuthMethod, io.Closer) {
	sshAuthSock := os.Getenv("SSH_AUTH_SOCK")
	if sshAuthSock == "" {
		return nil, nil
	}

	conn, err := net.Dial("unix", sshAuthSock)
	if err != nil {
		return nil, nil
	}

	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), conn
}

// hostKeyCallback verifies host keys against known_hosts, creating an empty
// file when none exists yet so unknown hosts get a readable error.
func hostKeyCallback(cfg *Config) (ssh.HostKeyCallback, error) {
	if cfg.IgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	knownHostsPath := cfg.KnownHostsPath
	if knownHostsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get home directory")
		}
		knownHostsPath = filepath.Join(home, ".ssh", "known_hosts")
	} else {
		knownHostsPath = expandPath(knownHostsPath)
	}

	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, errors.Wrap(err, "failed to create .ssh directory")
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, errors.Wrap(err, "failed to create known_hosts file")
		}
	}

	kh, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse known_hosts")
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := kh(hostname, remote, key)
		if err == nil {
			return nil
		}
		keyLine := knownhosts.Line([]string{hostname}, key)
		fingerprint := ssh.FingerprintSHA256(key)

		switch {
		case knownhosts.IsHostKeyChanged(err):
			return &HostKeyError{
				Host:           hostname,
				KeyType:        key.Type(),
				KeyFingerprint: fingerprint,
				KnownHostsLine: keyLine,
				Err: errors.Newf("host key has changed for %s. This could indicate a man-in-the-middle attack.\n"+
					"Server presented key:\n"+
					"  Type: %s\n"+
					"  Fingerprint: %s\n"+
					"  Key line: %s\n"+
					"If you trust this new key, remove the old entry from %s and add the above line.",
					hostname, key.Type(), fingerprint, keyLine, knownHostsPath),
			}
		case knownhosts.IsHostUnknown(err):
			return &HostKeyError{
				Host:           hostname,
				KeyType:        key.Type(),
				KeyFingerprint: fingerprint,
				KnownHostsLine: keyLine,
				Err: errors.Newf("host key not found for %s.\n"+
					"Server presented key:\n"+
					"  Type: %s\n"+
					"  Fingerprint: %s\n"+
					"  Key line: %s\n"+
					"To accept this host, append the above key line to %s",
					hostname, key.Type(), fingerprint, keyLine, knownHostsPath),
			}
		}
		return err
	}, nil
}

// expandPath expands ~ to the home directory in a path.
func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
