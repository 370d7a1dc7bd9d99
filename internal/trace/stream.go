package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer writes each event to an io.Writer as it is emitted.
// Output is buffered; Flush or Close pushes it to the underlying writer.
type StreamTracer struct {
	mu     sync.Mutex
	dst    io.Writer
	buf    *bufio.Writer
	level  Level
	format Format
	lines  uint64
}

// NewStreamTracer creates a new StreamTracer.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{
		dst:    w,
		buf:    bufio.NewWriter(w),
		level:  level,
		format: format,
	}
}

// Emit formats ev and appends it to the output.
func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) {
		return
	}

	ev.Seq = NextSeq()
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	// Write errors surface from Flush; a table operation never fails on them.
	_, _ = t.buf.Write(data)
	t.lines++
	// Defects are rare and must survive a crash right after them.
	if ev.Scope == ScopeDefect {
		_ = t.buf.Flush()
	}
}

// Lines returns the number of events written so far.
func (t *StreamTracer) Lines() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lines
}

// Flush writes buffered events to the underlying writer.
func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Flush()
}

// Close flushes and closes the writer if it implements io.Closer.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if closer, ok := t.dst.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Level returns the current tracing level.
func (t *StreamTracer) Level() Level {
	return t.level
}

// Enabled returns true if tracing is active.
func (t *StreamTracer) Enabled() bool {
	return t.level > LevelOff
}
