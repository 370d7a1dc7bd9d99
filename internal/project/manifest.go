package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"structnames/internal/types"
)

// ManifestName is the file looked up by Find.
const ManifestName = "structnames.toml"

var (
	// ErrNoModules indicates that the manifest declares no [[module]] entries.
	ErrNoModules = errors.New("no [[module]] entries")
	// ErrModuleAddressMissing indicates a [[module]] entry without an address.
	ErrModuleAddressMissing = errors.New("missing [[module]].address")
)

// Manifest is a parsed structnames.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the TOML layout.
type Config struct {
	Load    LoadConfig   `toml:"load"`
	Trace   TraceConfig  `toml:"trace"`
	Modules []ModuleSpec `toml:"module"`
}

// LoadConfig controls bulk interning.
type LoadConfig struct {
	Jobs int `toml:"jobs"`
}

// TraceConfig holds trace settings; CLI flags take precedence.
type TraceConfig struct {
	Level    string `toml:"level"`
	Mode     string `toml:"mode"`
	Format   string `toml:"format"`
	Output   string `toml:"output"`
	RingSize int    `toml:"ring_size"`
}

// ModuleSpec declares the structs of one module.
type ModuleSpec struct {
	Address string   `toml:"address"`
	Name    string   `toml:"name"`
	Structs []string `toml:"structs"`
}

// Find walks up from startDir looking for structnames.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	m := &Manifest{Path: path, Root: filepath.Dir(path), Config: cfg}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadFrom finds and loads the nearest manifest. ok is false when none exists.
func LoadFrom(startDir string) (m *Manifest, ok bool, err error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err = Load(path)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Validate checks every declared module and struct name.
func (m *Manifest) Validate() error {
	if len(m.Config.Modules) == 0 {
		return ErrNoModules
	}
	if m.Config.Load.Jobs < 0 {
		return fmt.Errorf("[load].jobs must not be negative, got %d", m.Config.Load.Jobs)
	}
	_, err := m.Identifiers()
	return err
}

// Identifiers returns the declared struct identifiers in manifest order.
// Duplicates are kept; interning them is idempotent.
func (m *Manifest) Identifiers() ([]types.StructIdentifier, error) {
	var out []types.StructIdentifier
	for i, mod := range m.Config.Modules {
		if strings.TrimSpace(mod.Address) == "" {
			return nil, fmt.Errorf("module #%d (%q): %w", i, mod.Name, ErrModuleAddressMissing)
		}
		addr, err := types.ParseAddress(strings.TrimSpace(mod.Address))
		if err != nil {
			return nil, fmt.Errorf("module #%d (%q): %w", i, mod.Name, err)
		}
		for _, name := range mod.Structs {
			id, err := types.NewStructIdentifier(addr, mod.Name, name)
			if err != nil {
				return nil, fmt.Errorf("module #%d (%q): %w", i, mod.Name, err)
			}
			out = append(out, id)
		}
	}
	return out, nil
}
