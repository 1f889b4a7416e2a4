package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/rxcore/memory"
	"github.com/chazu/rxcore/vm"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[memory]
pool-size = 1048576
segment-size = 32768
source = "heap"

[stack]
capacity = 512

[log]
verbosity = 2
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Memory.PoolSize != 1048576 {
		t.Errorf("Expected pool-size 1048576, got %d", c.Memory.PoolSize)
	}
	if c.Memory.SegmentSize != 32768 {
		t.Errorf("Expected segment-size 32768, got %d", c.Memory.SegmentSize)
	}
	if c.Stack.Capacity != 512 {
		t.Errorf("Expected capacity 512, got %d", c.Stack.Capacity)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("Expected verbosity 2, got %d", c.Log.Verbosity)
	}
	if !filepath.IsAbs(c.Path) {
		t.Errorf("Expected absolute path, got %q", c.Path)
	}

	a, err := c.NewAllocator()
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	defer a.Close()
	if _, ok := c.NewSource().(*memory.HeapSource); !ok {
		t.Error("Expected heap source")
	}
	if got := a.FirstPool().Size(); got != 1048576 {
		t.Errorf("Expected pool of 1048576 bytes, got %d", got)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[log]\nverbosity = 0\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Memory.PoolSize != memory.DefaultPoolSize {
		t.Errorf("Expected default pool size, got %d", c.Memory.PoolSize)
	}
	if c.Memory.Source != "os" {
		t.Errorf("Expected os source, got %q", c.Memory.Source)
	}
	if c.Stack.Capacity != vm.DefaultFrameCapacity {
		t.Errorf("Expected default capacity, got %d", c.Stack.Capacity)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[memory]\nsource = \"disk\"\n")
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "memory.source") {
		t.Errorf("Expected memory.source error, got %v", err)
	}

	writeConfig(t, dir, "[memory]\npool-size = 4096\nsegment-size = 8192\n")
	if _, err := Load(dir); err == nil {
		t.Error("Expected segment-size error")
	}

	writeConfig(t, dir, "[memory\n")
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[stack]\ncapacity = 64\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c == nil || c.Stack.Capacity != 64 {
		t.Fatalf("Expected config with capacity 64, got %+v", c)
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	mc := c.MemoryConfig()
	if mc.PoolSize != memory.DefaultPoolSize || mc.SegmentSize != memory.DefaultSegmentSize {
		t.Errorf("Unexpected default memory config %+v", mc)
	}
}
