// Package config handles rxcore.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/rxcore/memory"
	"github.com/chazu/rxcore/vm"
)

// FileName is the configuration file searched for by FindAndLoad.
const FileName = "rxcore.toml"

// Config represents an rxcore.toml file.
type Config struct {
	Memory Memory `toml:"memory"`
	Stack  Stack  `toml:"stack"`
	Log    Log    `toml:"log"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-"`
}

// Memory configures the segment pool allocator.
type Memory struct {
	PoolSize    uint64 `toml:"pool-size"`
	SegmentSize uint64 `toml:"segment-size"`
	Source      string `toml:"source"` // "os" or "heap"
}

// Stack configures activation stacks.
type Stack struct {
	Capacity int `toml:"capacity"`
}

// Log configures logging.
type Log struct {
	Verbosity int     `toml:"verbosity"`
	File      *string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Memory.PoolSize == 0 {
		c.Memory.PoolSize = memory.DefaultPoolSize
	}
	if c.Memory.SegmentSize == 0 {
		c.Memory.SegmentSize = memory.DefaultSegmentSize
	}
	if c.Memory.Source == "" {
		c.Memory.Source = "os"
	}
	if c.Stack.Capacity <= 0 {
		c.Stack.Capacity = vm.DefaultFrameCapacity
	}
}

func (c *Config) validate() error {
	switch c.Memory.Source {
	case "os", "heap":
	default:
		return fmt.Errorf("memory.source must be \"os\" or \"heap\", got %q", c.Memory.Source)
	}
	if c.Memory.SegmentSize > c.Memory.PoolSize {
		return fmt.Errorf("memory.segment-size %d exceeds memory.pool-size %d", c.Memory.SegmentSize, c.Memory.PoolSize)
	}
	return nil
}

// Load parses an rxcore.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find an rxcore.toml file, then
// loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// MemoryConfig returns the allocator sizing.
func (c *Config) MemoryConfig() memory.Config {
	return memory.Config{
		PoolSize:    uintptr(c.Memory.PoolSize),
		SegmentSize: uintptr(c.Memory.SegmentSize),
	}
}

// NewSource returns the memory source selected by the configuration.
func (c *Config) NewSource() memory.Source {
	if c.Memory.Source == "heap" {
		return memory.NewHeapSource(uintptr(os.Getpagesize()), 0)
	}
	return memory.NewOSSource()
}

// NewAllocator builds an allocator from the configuration.
func (c *Config) NewAllocator() (*memory.Allocator, error) {
	return memory.NewAllocator(c.MemoryConfig(), c.NewSource())
}
