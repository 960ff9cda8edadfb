package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssakit/internal/engine"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	kind, err := cfg.Engine.EngineKind()
	require.NoError(t, err)
	assert.Equal(t, engine.Interpreter, kind)
	assert.Equal(t, uint64(30000), cfg.Brainhack.TapeSize)
	assert.Equal(t, uint64(10), cfg.Fib.N)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse(`
[engine]
kind = "JIT"
max_call_depth = 64

[brainhack]
tape_size = 512
`)
	require.NoError(t, err)

	kind, err := cfg.Engine.EngineKind()
	require.NoError(t, err)
	assert.Equal(t, engine.JIT, kind)
	assert.Equal(t, 64, cfg.Engine.MaxCallDepth)
	assert.Equal(t, 64<<20, cfg.Engine.MemoryLimit)
	assert.Equal(t, uint64(512), cfg.Brainhack.TapeSize)

	opts := cfg.Engine.Options()
	assert.Equal(t, 64, opts.MaxCallDepth)
	assert.Nil(t, opts.Host)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
		msg  string
	}{
		{"unknown kind", "[engine]\nkind = \"aot\"", "[engine].kind"},
		{"zero tape", "[brainhack]\ntape_size = 0", "[brainhack].tape_size"},
		{"negative depth", "[engine]\nmax_call_depth = -1", "[engine].max_call_depth"},
		{"bad toml", "[engine\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Fib.N = 20
	cfg.Log.Verbosity = 2
	text, err := cfg.Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
