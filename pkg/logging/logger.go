package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Category represents the subsystem generating the log
type Category string

const (
	CategoryAuth         Category = "auth"
	CategoryTransport    Category = "transport"
	CategoryDocument     Category = "document"
	CategoryConversation Category = "conversation"
	CategoryOrchestrator Category = "orchestrator"
	CategoryStorage      Category = "storage"
)

// Event represents a structured log event
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	EventType string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Logger writes structured JSONL events to the client log files
type Logger struct {
	baseDir    string
	clientFile *os.File
	errorFile  *os.File
	mu         sync.Mutex
	minLevel   Level
	sessionID  string
}

// NewLogger creates a new structured logger rooted at baseDir
func NewLogger(baseDir string) (*Logger, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	clientFile, err := os.OpenFile(
		filepath.Join(baseDir, "client.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o600,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open client log: %w", err)
	}

	errorFile, err := os.OpenFile(
		filepath.Join(baseDir, "errors.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o600,
	)
	if err != nil {
		clientFile.Close()
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}

	return &Logger{
		baseDir:    baseDir,
		clientFile: clientFile,
		errorFile:  errorFile,
		minLevel:   LevelInfo,
	}, nil
}

// Nop returns a logger that discards every event. Used in tests and when
// the data directory is unavailable.
func Nop() *Logger {
	return &Logger{minLevel: Level("off")}
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetSessionID tags subsequent events with the active chat session
func (l *Logger) SetSessionID(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = sessionID
}

// Log writes an event to the appropriate destinations
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.clientFile == nil && l.errorFile == nil {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}

	if !l.shouldLog(event.Level) {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	if l.clientFile != nil {
		if _, err := l.clientFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to client log: %w", err)
		}
	}

	if event.Level == LevelError && l.errorFile != nil {
		if _, err := l.errorFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to error log: %w", err)
		}
	}

	return nil
}

// shouldLog checks if event should be logged based on level
func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	min, ok := levels[l.minLevel]
	if !ok {
		return false
	}
	return levels[level] >= min
}

// Helper methods for common log patterns

// Debug logs a debug event
func (l *Logger) Debug(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelDebug,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Info logs an info event
func (l *Logger) Info(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelInfo,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Warn logs a warning event
func (l *Logger) Warn(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelWarn,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Error logs an error event
func (l *Logger) Error(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelError,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Close closes all log files
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.clientFile != nil {
		if err := l.clientFile.Close(); err != nil {
			firstErr = err
		}
		l.clientFile = nil
	}
	if l.errorFile != nil {
		if err := l.errorFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.errorFile = nil
	}
	return firstErr
}
