package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `business_tokens = ["t1"]`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", cfg.ListenAddr())
	assert.Equal(t, "modules", cfg.ModulesDir)
	assert.True(t, cfg.HotReload)
	assert.True(t, cfg.Logging.EnableRequestLogging)
	assert.Equal(t, 1000, cfg.Logging.MaxBodySize)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
host = "0.0.0.0"
port = 9000
modules_dir = "apis"
hot_reload = false
business_tokens = ["t1", "shared"]
admin_tokens = ["a1", "shared"]

[logging]
enable_request_logging = false
log_request_body = false
max_body_size = 64
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
	assert.False(t, cfg.HotReload)
	assert.True(t, cfg.IsBusinessToken("t1"))
	assert.False(t, cfg.IsBusinessToken("a1"))
	assert.True(t, cfg.IsAdminToken("a1"))
	assert.False(t, cfg.IsAdminToken("t1"))

	// A token listed in both sets passes both tiers.
	assert.True(t, cfg.IsBusinessToken("shared"))
	assert.True(t, cfg.IsAdminToken("shared"))
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad toml":    `port = `,
		"bad port":    `port = 99999`,
		"empty host":  `host = " "`,
		"empty token": `business_tokens = [""]`,
		"negative":    "[logging]\nmax_body_size = -1",
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}
}

func TestHolderReloadSwapsAtomically(t *testing.T) {
	path := writeConfig(t, `business_tokens = ["old"]`)
	h, err := NewHolder(path)
	require.NoError(t, err)
	require.True(t, h.Current().IsBusinessToken("old"))

	require.NoError(t, os.WriteFile(path, []byte(`business_tokens = ["new"]`), 0o600))
	cfg, err := h.Reload()
	require.NoError(t, err)
	assert.True(t, cfg.IsBusinessToken("new"))
	assert.False(t, h.Current().IsBusinessToken("old"))
}

func TestHolderReloadKeepsOldSnapshotOnError(t *testing.T) {
	path := writeConfig(t, `business_tokens = ["good"]`)
	h, err := NewHolder(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`port = `), 0o600))
	_, err = h.Reload()
	require.Error(t, err)
	assert.True(t, h.Current().IsBusinessToken("good"), "previous snapshot must stay live")
}

func TestNewSnapshot(t *testing.T) {
	cfg := NewSnapshot(func(s *Snapshot) {
		s.BusinessTokens = []string{"t"}
		s.AdminTokens = []string{"a"}
	})
	assert.True(t, cfg.IsBusinessToken("t"))
	assert.True(t, cfg.IsAdminToken("a"))
	assert.False(t, cfg.IsAdminToken("t"))
}
