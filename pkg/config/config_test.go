package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heap-dump/internal/sizing"
	"github.com/heap-dump/pkg/model"
	"github.com/heap-dump/pkg/roots"

	apperrors "github.com/heap-dump/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heap-dump.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  type: local\n"))
	require.NoError(t, err)

	assert.Equal(t, model.StrategyQueued, cfg.Strategy())
	assert.Equal(t, roots.AccessAll, cfg.Access())
	assert.Equal(t, sizing.HostPlatform(), cfg.Platform)
	assert.Equal(t, "xml", cfg.Output.Format)
	assert.Equal(t, 10, cfg.Output.Top)
	assert.Equal(t, "./heapdumps", cfg.Storage.LocalPath)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, "/debug/heapdump", cfg.Server.Path)
	assert.Equal(t, 100, cfg.Log.Rotate.MaxSizeMB)
	assert.Equal(t, 64, cfg.Dump.MaxValueLen)
}

func TestLoad_CustomValues(t *testing.T) {
	path := writeConfig(t, `
dump:
  strategy: eager
  access: public
  skip_empty_types: true
  include: [game, engine/render]
  exclude: [game/internal]
platform:
  pointer_width: 4
  char_width: 2
  length_prefix_width: 4
output:
  format: json
  compression: zstd
  flamegraph: true
database:
  type: sqlite
  path: /tmp/history.db
log:
  level: debug
  file: /tmp/heap-dump.log
  max_backups: 9
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, model.StrategyEager, cfg.Strategy())
	assert.Equal(t, roots.AccessPublic, cfg.Access())
	assert.True(t, cfg.Dump.SkipEmptyTypes)
	assert.Equal(t, []string{"game", "engine/render"}, cfg.Dump.Include)
	assert.Equal(t, sizing.Platform{PointerWidth: 4, CharWidth: 2, LengthPrefixWidth: 4}, cfg.Platform)
	assert.Equal(t, "zstd", cfg.Output.Compression)
	assert.True(t, cfg.Output.FlameGraph)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, "/tmp/history.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9, cfg.Log.Rotate.MaxBackups)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Storage.Type)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HEAPDUMP_DUMP_STRATEGY", "eager")
	t.Setenv("HEAPDUMP_OUTPUT_COMPRESSION", "gzip")

	cfg, err := Load(writeConfig(t, "dump:\n  strategy: queued\n"))
	require.NoError(t, err)
	assert.Equal(t, model.StrategyEager, cfg.Strategy())
	assert.Equal(t, "gzip", cfg.Output.Compression)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"strategy", "dump:\n  strategy: random\n", "unknown strategy"},
		{"access", "dump:\n  access: friends\n", "dump.access"},
		{"pointer width", "platform:\n  pointer_width: 3\n", "pointer width"},
		{"format", "output:\n  format: yaml\n", "unsupported output format"},
		{"compression", "output:\n  compression: lz4\n", "unsupported compression"},
		{"database", "database:\n  type: oracle\n", "unsupported database type"},
		{"sqlite path", "database:\n  type: sqlite\n  path: \"\"\n", "sqlite database path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "dump: [unclosed\n"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader("yaml", []byte("output:\n  top: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Output.Top)

	_, err = LoadFromReader("yaml", []byte("output: [\n"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Contains(t, cfg.Dump.String(), "strategy=queued")
}
