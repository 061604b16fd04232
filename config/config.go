// Package config resolves the settings metatool runs with: the candidate
// node list, timeouts, the upload limit, the signature scheme and the
// optional download mirror.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"

	"metadisk.org/metatool/keys"
	"metadisk.org/metatool/storage/casconfig"
)

// EnvServer overrides the built-in node list when --url is not given. The
// spelling is historical and kept for compatibility with existing setups.
const EnvServer = "MEATADISKSERVER"

const (
	DefaultTimeout       = 60 * time.Second
	DefaultMaxUploadSize = 128 * datasize.MB
)

// DefaultNodes is used when nothing else names a node.
var DefaultNodes = []string{
	"http://node2.metadisk.org/",
	"http://node3.metadisk.org/",
}

// Duration is a time.Duration read from a JSON string such as "90s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"60s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the on-disk configuration file.
type Config struct {
	Nodes         []string          `json:"nodes,omitempty"`
	Timeout       Duration          `json:"timeout,omitempty"`
	MaxUploadSize datasize.ByteSize `json:"max_upload_size,omitempty"`
	Scheme        string            `json:"scheme,omitempty"`
	Mirror        *casconfig.Config `json:"mirror,omitempty"`
}

// Default returns the configuration used without a config file.
func Default() Config {
	return Config{
		Timeout:       Duration(DefaultTimeout),
		MaxUploadSize: DefaultMaxUploadSize,
		Scheme:        string(keys.SchemeEd25519),
	}
}

// DefaultPath returns the per-user config file location,
// <user config dir>/metatool/config.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "metatool", "config.json"), nil
}

// LoadFile reads path over the defaults and validates the result. Fields the
// file leaves out keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Load reads path when it is set. Otherwise it reads DefaultPath if that
// file exists, and falls back to Default.
func Load(path string) (Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	def, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	if _, err := os.Stat(def); err != nil {
		return Default(), nil
	}
	return LoadFile(def)
}

func (c Config) Validate() error {
	for _, n := range c.Nodes {
		if err := checkNodeURL(n); err != nil {
			return err
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: negative timeout %s", time.Duration(c.Timeout))
	}
	if _, err := keys.ProviderFor(c.Scheme); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Mirror != nil {
		if err := c.Mirror.Validate(); err != nil {
			return fmt.Errorf("config: mirror: %w", err)
		}
	}
	return nil
}

func checkNodeURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("config: node %q: %w", s, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: node %q must be an absolute URL", s)
	}
	return nil
}

// ResolveNodes returns the candidate list: flagURL if set, else the EnvServer
// variable, else the config file's nodes, else DefaultNodes. The result is
// never empty.
func ResolveNodes(flagURL string, getenv func(string) string, cfg Config) []string {
	if s := strings.TrimSpace(flagURL); s != "" {
		return []string{s}
	}
	if getenv != nil {
		if s := strings.TrimSpace(getenv(EnvServer)); s != "" {
			return []string{s}
		}
	}
	var nodes []string
	for _, n := range cfg.Nodes {
		if s := strings.TrimSpace(n); s != "" {
			nodes = append(nodes, s)
		}
	}
	if len(nodes) > 0 {
		return nodes
	}
	return append([]string(nil), DefaultNodes...)
}
