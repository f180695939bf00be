package remote

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SSHConfigEntry holds the ssh_config settings native dials care about.
type SSHConfigEntry struct {
	Host         string
	Hostname     string
	User         string
	Port         string
	IdentityFile string
}

type sshConfigBlock struct {
	patterns []string
	entry    *SSHConfigEntry
}

// SSHConfig is a parsed OpenSSH client config file. Blocks keep file order
// because OpenSSH uses the first matching value.
type SSHConfig struct {
	blocks         []sshConfigBlock
	globalDefaults *SSHConfigEntry // options before any Host block
}

var (
	sshConfigLineRe    = regexp.MustCompile(`^\s*(\w+)\s*[=\s]\s*(.+?)\s*$`)
	sshConfigCommentRe = regexp.MustCompile(`^\s*(#.*)?$`)
)

// ParseSSHConfig parses the SSH config file at the given path.
// If path is empty, it uses the default ~/.ssh/config. A missing file
// yields an empty config.
func ParseSSHConfig(configPath string) (*SSHConfig, error) {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(home, ".ssh", "config")
	}
	configPath = expandPath(configPath)

	config := &SSHConfig{globalDefaults: &SSHConfigEntry{}}

	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}
	defer file.Close()

	var current *SSHConfigEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if sshConfigCommentRe.MatchString(line) {
			continue
		}

		matches := sshConfigLineRe.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		keyword := strings.ToLower(matches[1])
		value := strings.Trim(matches[2], "\"'")

		if keyword == "host" {
			current = &SSHConfigEntry{Host: value}
			config.blocks = append(config.blocks, sshConfigBlock{patterns: strings.Fields(value), entry: current})
			continue
		}

		target := current
		if target == nil {
			target = config.globalDefaults
		}
		switch keyword {
		case "hostname":
			if current != nil {
				current.Hostname = value
			}
		case "user":
			target.User = value
		case "port":
			target.Port = value
		case "identityfile":
			target.IdentityFile = expandPath(value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetEntry returns the entry of the first Host block matching host, or nil.
func (c *SSHConfig) GetEntry(host string) *SSHConfigEntry {
	for _, block := range c.blocks {
		for _, pattern := range block.patterns {
			if matchPattern(pattern, host) {
				return block.entry
			}
		}
	}
	return nil
}

// matchPattern reports whether host matches an ssh_config pattern with *
// and ? wildcards.
func matchPattern(pattern, host string) bool {
	if pattern == "*" {
		return true
	}

	var b strings.Builder
	b.WriteString("^")
	for _, char := range pattern {
		switch char {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(char)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(host)
}

// ApplyToConfig fills the unset fields of config from the file. Explicit
// values win, then the matching Host block, then global defaults.
func (c *SSHConfig) ApplyToConfig(host string, config *Config) {
	explicitUser := config.User != ""
	explicitPort := config.Port != ""
	explicitKey := config.KeyPath != ""

	apply := func(entry *SSHConfigEntry) {
		if entry == nil {
			return
		}
		if !explicitUser && entry.User != "" {
			config.User = entry.User
		}
		if !explicitPort && validPort(entry.Port) {
			config.Port = entry.Port
		}
		if !explicitKey && entry.IdentityFile != "" {
			config.KeyPath = entry.IdentityFile
		}
	}

	apply(c.globalDefaults)

	entry := c.GetEntry(host)
	apply(entry)
	if entry != nil && entry.Hostname != "" && config.Host == host {
		config.Host = entry.Hostname
	}
}

func validPort(s string) bool {
	port, err := strconv.Atoi(s)
	return err == nil && port > 0 && port < 65536
}
