// Package config loads ssakit.toml. Every field has a default, so a
// missing file or a partial one is fine.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"ssakit/internal/brainhack"
	"ssakit/internal/engine"
	"ssakit/internal/fib"
)

// FileName is looked up in the working directory when --config is not given
const FileName = "ssakit.toml"

type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Brainhack BrainhackConfig `toml:"brainhack"`
	Fib       FibConfig       `toml:"fib"`
	Log       LogConfig       `toml:"log"`
}

type EngineConfig struct {
	Kind         string `toml:"kind"` // interpreter or jit
	MemoryLimit  int    `toml:"memory_limit"`
	StackSize    int    `toml:"stack_size"`
	MaxCallDepth int    `toml:"max_call_depth"`
	Exclusive    bool   `toml:"exclusive"`
}

type BrainhackConfig struct {
	TapeSize uint64 `toml:"tape_size"`
}

type FibConfig struct {
	N uint64 `toml:"n"`
}

type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

func Default() Config {
	return Config{
		Engine: EngineConfig{
			Kind:         engine.Interpreter.String(),
			MemoryLimit:  64 << 20,
			StackSize:    1 << 20,
			MaxCallDepth: 10000,
		},
		Brainhack: BrainhackConfig{TapeSize: brainhack.DefaultTapeSize},
		Fib:       FibConfig{N: fib.DefaultN},
	}
}

// Load decodes path over the defaults and validates the result
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load for configuration text
func Parse(text string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.Engine.EngineKind(); err != nil {
		return err
	}
	switch {
	case c.Engine.MemoryLimit <= 0:
		return fmt.Errorf("[engine].memory_limit must be positive, got %d", c.Engine.MemoryLimit)
	case c.Engine.StackSize <= 0:
		return fmt.Errorf("[engine].stack_size must be positive, got %d", c.Engine.StackSize)
	case c.Engine.MaxCallDepth <= 0:
		return fmt.Errorf("[engine].max_call_depth must be positive, got %d", c.Engine.MaxCallDepth)
	case c.Brainhack.TapeSize == 0:
		return fmt.Errorf("[brainhack].tape_size must be positive")
	}
	return nil
}

// EngineKind maps the kind name to an engine kind
func (e EngineConfig) EngineKind() (engine.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(e.Kind)) {
	case "", "interpreter":
		return engine.Interpreter, nil
	case "jit":
		return engine.JIT, nil
	}
	return 0, fmt.Errorf("[engine].kind must be interpreter or jit, got %q", e.Kind)
}

// Options turns the engine section into engine options. Stdout, Stdin and
// Host are left for the caller.
func (e EngineConfig) Options() engine.Options {
	return engine.Options{
		MemoryLimit:  e.MemoryLimit,
		StackSize:    e.StackSize,
		MaxCallDepth: e.MaxCallDepth,
	}
}

// Encode writes c as TOML
func (c Config) Encode() (string, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", err
	}
	return b.String(), nil
}
