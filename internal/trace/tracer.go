package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Tracer is the main interface for emitting trace events.
type Tracer interface {
	// Emit records a trace event. Must be goroutine-safe.
	Emit(ev *Event)

	// Flush ensures all buffered events are written.
	Flush() error

	// Close flushes and releases resources.
	Close() error

	// Level returns the current tracing level.
	Level() Level

	// Enabled returns true if tracing is active (Level > LevelOff).
	Enabled() bool
}

// StorageMode determines how events are stored.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // immediate write
	ModeRing                          // circular buffer
	ModeBoth                          // stream + ring
)

// String returns the string representation of StorageMode.
func (m StorageMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to StorageMode. The empty string means stream.
func ParseMode(s string) (StorageMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stream":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	default:
		return ModeStream, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
	}
}

// DefaultRingSize holds enough events for one bulk load of a few thousand
// identifiers at table level.
const DefaultRingSize = 4096

// MaxRingSize bounds the in-memory ring; each slot holds one Event.
const MaxRingSize = 1 << 20

// Config holds tracer configuration.
type Config struct {
	Level      Level       // tracing level
	Mode       StorageMode // storage mode
	Format     Format      // output format (FormatAuto for detection by extension)
	Output     io.Writer   // for stream mode (if nil, use OutputPath)
	OutputPath string      // alternative: file path ("-" for stderr)
	RingSize   int         // for ring mode (0 means DefaultRingSize)
}

// DefaultConfig traces table-wide operations and defects to stderr.
// Entry events are left out: a bulk load emits one per identifier.
func DefaultConfig() Config {
	return Config{
		Level:      LevelTable,
		Mode:       ModeStream,
		Format:     FormatAuto,
		OutputPath: "-",
		RingSize:   DefaultRingSize,
	}
}

// Settings is the textual form of Config as found in flags and manifests.
// Empty fields keep the DefaultConfig value.
type Settings struct {
	Level    string
	Mode     string
	Format   string
	Output   string
	RingSize int
}

// ParseConfig builds a Config from textual settings on top of DefaultConfig.
func ParseConfig(s Settings) (Config, error) {
	cfg := DefaultConfig()
	if s.Level != "" {
		level, err := ParseLevel(s.Level)
		if err != nil {
			return Config{}, err
		}
		cfg.Level = level
	}
	mode, err := ParseMode(s.Mode)
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = mode
	format, err := ParseFormat(s.Format)
	if err != nil {
		return Config{}, err
	}
	cfg.Format = format
	if s.Output != "" {
		cfg.OutputPath = s.Output
	}
	if s.RingSize != 0 {
		cfg.RingSize = s.RingSize
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges that New would otherwise clamp silently.
func (c Config) Validate() error {
	if c.Level > LevelEntry {
		return fmt.Errorf("invalid trace level %d", c.Level)
	}
	if c.RingSize < 0 || c.RingSize > MaxRingSize {
		return fmt.Errorf("trace ring size %d out of range (0..%d)", c.RingSize, MaxRingSize)
	}
	if c.Mode != ModeStream && c.Mode != ModeRing && c.Mode != ModeBoth {
		return fmt.Errorf("unknown storage mode: %v", c.Mode)
	}
	return nil
}

// New creates a Tracer based on Config.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.RingSize == 0 {
		cfg.RingSize = DefaultRingSize
	}

	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		if strings.HasSuffix(cfg.OutputPath, ".ndjson") || strings.HasSuffix(cfg.OutputPath, ".jsonl") {
			format = FormatNDJSON
		}
	}

	switch cfg.Mode {
	case ModeStream:
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		return NewStreamTracer(w, cfg.Level, format), nil

	case ModeRing:
		return NewRingTracer(cfg.RingSize, cfg.Level), nil

	case ModeBoth:
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		stream := NewStreamTracer(w, cfg.Level, format)
		ring := NewRingTracer(cfg.RingSize, cfg.Level)
		return NewMultiTracer(cfg.Level, stream, ring), nil

	default:
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}
}

// openOutput opens the output writer from config.
func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}

	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return stderrWriter{os.Stderr}, nil
	}

	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}

	return f, nil
}

// stderrWriter hides the Close method of os.Stderr from StreamTracer.Close.
type stderrWriter struct{ io.Writer }

// RingOf returns the ring buffer behind t, looking through a MultiTracer.
func RingOf(t Tracer) (*RingTracer, bool) {
	switch tr := t.(type) {
	case *RingTracer:
		return tr, true
	case *MultiTracer:
		return tr.Ring()
	default:
		return nil, false
	}
}
