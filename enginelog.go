package webcodecs

import (
	"sync"
	"time"
)

// LogLevel is the severity of an engine log entry.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// LogEntry is one message emitted by a codec engine.
type LogEntry struct {
	Time    time.Time
	Level   LogLevel
	Engine  string
	Message string
}

const engineLogCapacity = 512

// EngineLogSink collects engine warnings process-wide. Native libraries
// report through a single global callback, so entries from every session
// land here. When full, the oldest entry is overwritten.
type EngineLogSink struct {
	mu      sync.Mutex
	entries []LogEntry
	head    int
	size    int
	dropped uint64
}

// NewEngineLogSink creates a sink holding up to capacity entries.
func NewEngineLogSink(capacity int) *EngineLogSink {
	if capacity <= 0 {
		capacity = engineLogCapacity
	}
	return &EngineLogSink{entries: make([]LogEntry, capacity)}
}

// EngineLog is the process-wide sink engines write to.
var EngineLog = NewEngineLogSink(engineLogCapacity)

// LogEngine appends an entry to EngineLog.
func LogEngine(level LogLevel, engine, message string) {
	EngineLog.Append(LogEntry{Time: time.Now(), Level: level, Engine: engine, Message: message})
}

// Append adds an entry, overwriting the oldest one when the sink is full.
func (s *EngineLogSink) Append(e LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := (s.head + s.size) % len(s.entries)
	s.entries[tail] = e
	if s.size == len(s.entries) {
		s.head = (s.head + 1) % len(s.entries)
		s.dropped++
		return
	}
	s.size++
}

// Drain removes and returns all entries, oldest first.
func (s *EngineLogSink) Drain() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LogEntry, s.size)
	for i := range out {
		idx := (s.head + i) % len(s.entries)
		out[i] = s.entries[idx]
		s.entries[idx] = LogEntry{}
	}
	s.head, s.size = 0, 0
	return out
}

// Clear discards all entries.
func (s *EngineLogSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	s.head, s.size = 0, 0
}

// Len returns the number of buffered entries.
func (s *EngineLogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Dropped returns how many entries were overwritten before being drained.
func (s *EngineLogSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
