// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Logging controls request logging behavior. Formatting and rotation policy
// live in the logger package; these switches only gate what gets recorded.
type Logging struct {
	EnableRequestLogging bool `toml:"enable_request_logging"`
	LogRequestBody       bool `toml:"log_request_body"`
	MaxBodySize          int  `toml:"max_body_size"`
}

// Snapshot is one immutable configuration generation. It is never mutated
// after load; Holder swaps whole snapshots.
type Snapshot struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	ModulesDir     string   `toml:"modules_dir"`
	HotReload      bool     `toml:"hot_reload"`
	BusinessTokens []string `toml:"business_tokens"`
	AdminTokens    []string `toml:"admin_tokens"`
	Logging        Logging  `toml:"logging"`

	businessSet map[string]struct{}
	adminSet    map[string]struct{}
}

// ListenAddr is the host:port pair the server binds to.
func (s *Snapshot) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsBusinessToken reports membership in the business tier.
func (s *Snapshot) IsBusinessToken(token string) bool {
	_, ok := s.businessSet[token]
	return ok
}

// IsAdminToken reports membership in the admin tier. The two tiers are
// independent: an admin token authorizes business endpoints only when the
// configuration lists it in both sets.
func (s *Snapshot) IsAdminToken(token string) bool {
	_, ok := s.adminSet[token]
	return ok
}

func defaults() Snapshot {
	return Snapshot{
		Host:       "127.0.0.1",
		Port:       8000,
		ModulesDir: "modules",
		HotReload:  true,
		Logging: Logging{
			EnableRequestLogging: true,
			LogRequestBody:       true,
			MaxBodySize:          1000,
		},
	}
}

// Load reads and validates a configuration file into a fresh snapshot.
func Load(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	cfg.index()
	return &cfg, nil
}

func (s *Snapshot) validate() error {
	if strings.TrimSpace(s.Host) == "" {
		return errors.New("host is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if strings.TrimSpace(s.ModulesDir) == "" {
		return errors.New("modules_dir is required")
	}
	for i, t := range s.BusinessTokens {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("business_tokens[%d] is empty", i)
		}
	}
	for i, t := range s.AdminTokens {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("admin_tokens[%d] is empty", i)
		}
	}
	if s.Logging.MaxBodySize < 0 {
		return errors.New("logging.max_body_size must be >= 0")
	}
	return nil
}

func (s *Snapshot) index() {
	s.businessSet = make(map[string]struct{}, len(s.BusinessTokens))
	for _, t := range s.BusinessTokens {
		s.businessSet[t] = struct{}{}
	}
	s.adminSet = make(map[string]struct{}, len(s.AdminTokens))
	for _, t := range s.AdminTokens {
		s.adminSet[t] = struct{}{}
	}
}

// NewSnapshot builds an in-memory snapshot, primarily for tests and embedded
// use. Defaults apply before the mutation function runs.
func NewSnapshot(mut func(*Snapshot)) *Snapshot {
	cfg := defaults()
	if mut != nil {
		mut(&cfg)
	}
	cfg.index()
	return &cfg
}
