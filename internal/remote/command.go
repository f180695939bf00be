package remote

import (
	"strings"
	"unicode/utf8"
)

// commandLine accumulates the shell words of one process invocation. Words
// are escaped as they are added so String only has to join them.
type commandLine struct {
	words []string
}

func newCommandLine(program string) *commandLine {
	return &commandLine{words: []string{shellEscape(program)}}
}

// arg appends each value as a single escaped word.
func (c *commandLine) arg(values ...string) *commandLine {
	for _, v := range values {
		c.words = append(c.words, shellEscape(v))
	}
	return c
}

// quoted appends value as one single-quoted word.
func (c *commandLine) quoted(value string) *commandLine {
	c.words = append(c.words, singleQuote(value))
	return c
}

// raw appends s untouched. Empty strings are skipped.
func (c *commandLine) raw(s string) *commandLine {
	if s = strings.TrimSpace(s); s != "" {
		c.words = append(c.words, s)
	}
	return c
}

// prefix prepends another command line, as in "sshpass -p secret ssh ...".
func (c *commandLine) prefix(p *commandLine) *commandLine {
	c.words = append(append([]string{}, p.words...), c.words...)
	return c
}

func (c *commandLine) String() string {
	return strings.Join(c.words, " ")
}

// BuildSSHCommand returns the ssh invocation for cfg. When cfg.Password is
// set the command is wrapped in sshpass, which leaves the password in
// plain text on the command line.
func BuildSSHCommand(cfg *Config) string {
	return sshCommand(cfg).String()
}

func sshCommand(cfg *Config) *commandLine {
	cmd := newCommandLine("ssh")
	if cfg.Port != "" {
		cmd.arg("-p", cfg.Port)
	}
	if cfg.User != "" {
		cmd.arg(cfg.User + "@" + cfg.Host)
	} else {
		cmd.arg(cfg.Host)
	}
	if cfg.Password != "" {
		cmd.prefix(newCommandLine("sshpass").arg("-p", cfg.Password))
	}
	return cmd
}

// BuildRshArguments returns the remote shell rsync should use. With a
// gateway the gateway's ssh command comes first, so rsync hops through it
// to reach the target.
func BuildRshArguments(cfg *Config) string {
	if cfg.Gateway == nil {
		return BuildSSHCommand(cfg)
	}
	return BuildSSHCommand(cfg.Gateway) + " " + BuildSSHCommand(cfg)
}

// BuildRsyncCommand returns the rsync command line that copies source to
// destination over the remote shell described by cfg. Include rules are
// emitted before exclude rules.
func BuildRsyncCommand(cfg *Config, source, destination string, exclude, include []string) string {
	cmd := newCommandLine("rsync").
		arg("--progress", "-e").
		quoted(BuildRshArguments(cfg)).
		arg("-rlpt", "--compress", "--omit-dir-times", "--delete").
		raw(cfg.RsyncOptions)
	for _, pattern := range include {
		cmd.arg("--include", pattern)
	}
	for _, pattern := range exclude {
		cmd.arg("--exclude", pattern)
	}
	return cmd.arg(source, destination).String()
}

// shellEscape escapes s so a POSIX shell reads it back as one word.
// Unsafe characters get a backslash; newlines are single-quoted because a
// backslash-newline is a line continuation. Bytes that are not valid UTF-8
// are escaped one by one and kept as they are, so such paths still name
// the same file.
func shellEscape(s string) string {
	if s == "" {
		return "''"
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '\n':
			b.WriteString("'\n'")
		case size == 1 && isShellSafe(s[i]):
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

func isShellSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '_', '-', '.', ',', ':', '+', '/', '@':
		return true
	}
	return false
}

// singleQuote wraps s in single quotes, escaping embedded quotes as '\''.
func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
