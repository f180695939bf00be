package remote

import (
	"context"
	"fmt"
	"strings"
)

type call struct {
	op   string
	args []string
}

func (c call) String() string {
	return c.op + "(" + strings.Join(c.args, ", ") + ")"
}

// fakeSession records every call and returns the configured results.
type fakeSession struct {
	calls      []call
	err        error
	execStatus int
	execOutput []byte
	execErr    error
	closed     int
}

var _ ShellSession = (*fakeSession)(nil)

func (s *fakeSession) record(op string, args ...string) {
	s.calls = append(s.calls, call{op: op, args: args})
}

func (s *fakeSession) Download(remotePath, localPath string) error {
	s.record("download", remotePath, localPath)
	return s.err
}

func (s *fakeSession) Upload(localPath, remotePath string) error {
	s.record("upload", localPath, remotePath)
	return s.err
}

func (s *fakeSession) Remove(remotePath string) error {
	s.record("remove", remotePath)
	return s.err
}

func (s *fakeSession) Execute(command string) (int, []byte, error) {
	s.record("execute", command)
	return s.execStatus, s.execOutput, s.execErr
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeFileDialer struct {
	session *fakeSession
	errs    []error
	configs []*Config
}

func (d *fakeFileDialer) Dial(cfg *Config) (Session, error) {
	d.configs = append(d.configs, cfg)
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return d.session, nil
}

type fakeShellDialer struct {
	session    *fakeSession
	gateway    *fakeGateway
	dialErr    error
	gatewayErr error
	events     []string
	configs    []*Config
}

func (d *fakeShellDialer) Dial(cfg *Config) (ShellSession, error) {
	d.events = append(d.events, "dial "+describe(cfg))
	d.configs = append(d.configs, cfg)
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.session, nil
}

func (d *fakeShellDialer) DialGateway(cfg *Config) (Gateway, error) {
	d.events = append(d.events, "gateway "+describe(cfg))
	d.configs = append(d.configs, cfg)
	if d.gatewayErr != nil {
		return nil, d.gatewayErr
	}
	d.gateway.dialer = d
	return d.gateway, nil
}

type fakeGateway struct {
	dialer  *fakeShellDialer
	session *fakeSession
	openErr error
	closed  int
}

func (g *fakeGateway) Open(target *Config) (ShellSession, error) {
	g.dialer.events = append(g.dialer.events, "open "+describe(target))
	g.dialer.configs = append(g.dialer.configs, target)
	if g.openErr != nil {
		return nil, g.openErr
	}
	return g.session, nil
}

func (g *fakeGateway) Close() error {
	g.closed++
	return nil
}

func describe(cfg *Config) string {
	return fmt.Sprintf("%s@%s password=%q", cfg.User, cfg.Host, cfg.Password)
}

type fakeRunner struct {
	commands []string
	output   []byte
	err      error
}

func (r *fakeRunner) Run(_ context.Context, command string) ([]byte, error) {
	r.commands = append(r.commands, command)
	return r.output, r.err
}
