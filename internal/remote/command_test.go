package remote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/syntax"
)

func TestBuildSSHCommand(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{"host only", &Config{Host: "host"}, "ssh host"},
		{"port", &Config{Host: "host", Port: "port"}, "ssh -p port host"},
		{"user", &Config{Host: "host", User: "user"}, "ssh user@host"},
		{"password", &Config{Host: "host", Password: "password"}, "sshpass -p password ssh host"},
		{
			"everything",
			&Config{Host: "host", User: "user", Port: "2222", Password: "secret"},
			"sshpass -p secret ssh -p 2222 user@host",
		},
		{"password with spaces", &Config{Host: "host", Password: "two words"}, `sshpass -p two\ words ssh host`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSSHCommand(tt.config))
		})
	}
}

func TestBuildSSHCommandSingleInvocation(t *testing.T) {
	configs := []*Config{
		{Scheme: SchemeSSH, Host: "host"},
		{Scheme: SchemeSSH, Host: "host", User: "user", Port: "22"},
		{Scheme: SchemeSSH, Host: "host", Password: "pw"},
		{Scheme: SchemeSSH, Host: "host", User: "user", Password: "ssh"},
	}

	for _, cfg := range configs {
		words := shellWords(t, BuildSSHCommand(cfg))
		assert.Equal(t, 1, countWord(words, "ssh")-countPassword(cfg, "ssh"), "one ssh program in %v", words)
		if cfg.Password != "" {
			require.GreaterOrEqual(t, len(words), 4)
			assert.Equal(t, []string{"sshpass", "-p", cfg.Password, "ssh"}, words[:4])
			assert.Equal(t, 1, countWord(words, "sshpass"))
		} else {
			assert.Equal(t, "ssh", words[0])
			assert.NotContains(t, words, "sshpass")
		}
	}
}

func TestBuildRshArguments(t *testing.T) {
	cfg := &Config{Host: "host", User: "user"}
	assert.Equal(t, "ssh user@host", BuildRshArguments(cfg))

	cfg.Gateway = &Config{Host: "gate_host", User: "gate_user"}
	assert.Equal(t, "ssh gate_user@gate_host ssh user@host", BuildRshArguments(cfg))

	cfg.Gateway.Password = "gatepw"
	cfg.Gateway.Port = "2022"
	assert.Equal(t, "sshpass -p gatepw ssh -p 2022 gate_user@gate_host ssh user@host", BuildRshArguments(cfg))
}

func TestBuildRsyncCommand(t *testing.T) {
	cfg := &Config{
		Host:         "host",
		User:         "user",
		Port:         "8888",
		RsyncOptions: "--human-readable --partial",
	}

	want := strings.Join([]string{
		"rsync",
		"--progress",
		"-e",
		"'ssh -p 8888 user@host'",
		"-rlpt",
		"--compress",
		"--omit-dir-times",
		"--delete",
		"--human-readable",
		"--partial",
		"--include /wp-content/",
		"--include /wp-content/plugins/",
		"--exclude .git",
		`--exclude \*.sql`,
		`--exclude tmp/\*`,
		`--exclude wp-content/\*.sql`,
		`--exclude Gemfile\*`,
		"--exclude bin/",
		`source\ path`,
		`destination\ path`,
	}, " ")

	got := BuildRsyncCommand(cfg, "source path", "destination path",
		[]string{".git", "*.sql", "tmp/*", "wp-content/*.sql", "Gemfile*", "bin/"},
		[]string{"/wp-content/", "/wp-content/plugins/"},
	)
	assert.Equal(t, want, got)
}

func TestBuildRsyncCommandParsesBack(t *testing.T) {
	cfg := &Config{
		Host:     "host",
		User:     "deploy",
		Password: "it's secret",
		Gateway:  &Config{Host: "bastion"},
	}

	cmd := BuildRsyncCommand(cfg, "my dir/", ":remote $HOME/", []string{"*.log", "a b"}, []string{"keep'me"})
	words := shellWords(t, cmd)

	assert.Equal(t, []string{
		"rsync", "--progress", "-e",
		`ssh bastion sshpass -p it\'s\ secret ssh deploy@host`,
		"-rlpt", "--compress", "--omit-dir-times", "--delete",
		"--include", "keep'me",
		"--exclude", "*.log",
		"--exclude", "a b",
		"my dir/", ":remote $HOME/",
	}, words)
}

func TestBuildRsyncCommandFilterOrder(t *testing.T) {
	exclude := []string{"z", "a", "m"}
	include := []string{"3", "1", "2"}
	words := shellWords(t, BuildRsyncCommand(&Config{Host: "h"}, "s", "d", exclude, include))

	var includes, excludes []string
	lastInclude, firstExclude := -1, len(words)
	for i := 0; i < len(words)-1; i++ {
		switch words[i] {
		case "--include":
			includes = append(includes, words[i+1])
			lastInclude = i
		case "--exclude":
			excludes = append(excludes, words[i+1])
			if i < firstExclude {
				firstExclude = i
			}
		}
	}

	assert.Less(t, lastInclude, firstExclude)
	assert.Equal(t, include, includes)
	assert.Equal(t, exclude, excludes)
}

func TestBuildRsyncCommandWithoutOptions(t *testing.T) {
	got := BuildRsyncCommand(&Config{Host: "host", RsyncOptions: "   "}, "a/", ":b", nil, nil)
	assert.Equal(t, "rsync --progress -e 'ssh host' -rlpt --compress --omit-dir-times --delete a/ :b", got)
}

func TestShellEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"simple", "simple"},
		{"my directory", `my\ directory`},
		{"*.sql", `\*.sql`},
		{"/path/ok-1.2,3:4+5@6_7", "/path/ok-1.2,3:4+5@6_7"},
		{"a'b", `a\'b`},
		{"$HOME", `\$HOME`},
		{"line\nbreak", "line'\n'break"},
		{"caf\u00e9", "caf\\\u00e9"},
		{"dir\xffname", "dir\\\xffname"},
		{"\xfe\xff", "\\\xfe\\\xff"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, shellEscape(tt.in), "shellEscape(%q)", tt.in)
	}
}

func TestShellEscapeKeepsInvalidUTF8(t *testing.T) {
	path := "backups/dir\xffname"
	escaped := shellEscape(path)
	assert.Equal(t, []byte("backups/dir\\\xffname"), []byte(escaped))
	assert.NotContains(t, escaped, "\uFFFD")

	command := newCommandLine("rm").arg("-rf", path).String()
	assert.Equal(t, []byte("rm -rf backups/dir\\\xffname"), []byte(command))
}

func TestShellEscapeRoundTrip(t *testing.T) {
	for _, in := range []string{"plain", "with space", "glob*?[x]", "quote'\"", "semi;colon&amp|pipe", "tab\there", "ünïcode", "new\nline", "$(rm -rf /)"} {
		words := shellWords(t, "echo "+shellEscape(in))
		require.Len(t, words, 2, "input %q", in)
		assert.Equal(t, in, words[1])
	}
}

func TestSingleQuote(t *testing.T) {
	assert.Equal(t, "'two words'", singleQuote("two words"))
	assert.Equal(t, `'a'\''b'`, singleQuote("a'b"))
	assert.Equal(t, "''", singleQuote(""))
}

// shellWords parses a single simple command and returns its words as the
// shell would pass them to the program.
func shellWords(t *testing.T, command string) []string {
	t.Helper()

	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	require.NoError(t, err, "command %q", command)
	require.Len(t, file.Stmts, 1)

	call, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	require.True(t, ok, "not a simple command: %q", command)

	var words []string
	for _, w := range call.Args {
		words = append(words, literalWord(t, w))
	}
	return words
}

// literalWord resolves quoting in a word made only of literals.
func literalWord(t *testing.T, w *syntax.Word) string {
	t.Helper()

	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(unescapeLit(p.Value))
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		default:
			t.Fatalf("unexpected word part %T", part)
		}
	}
	return b.String()
}

// unescapeLit drops the backslash in front of escaped characters.
func unescapeLit(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func countWord(words []string, word string) int {
	n := 0
	for _, w := range words {
		if w == word {
			n++
		}
	}
	return n
}

// countPassword is 1 when the password itself equals word.
func countPassword(cfg *Config, word string) int {
	if cfg.Password == word {
		return 1
	}
	return 0
}
