// Package logging provides categorized logging for parley.
// Every subsystem logs through a named category so a single session trace
// can be filtered down to one concern (ledger, dispatch, artifacts, ...).
// The package is a thin facade over zap; before Initialize is called all
// helpers are no-ops, which keeps tests quiet by default.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategorySession  Category = "session"  // Session lifecycle, persistence
	CategoryEvents   Category = "events"   // Event bus publish/subscribe
	CategoryLedger   Category = "ledger"   // Objective registration and transitions
	CategoryPhase    Category = "phase"    // Phase coordinator decisions
	CategoryArtifact Category = "artifact" // Artifact ingestion and summarization
	CategoryTools    Category = "tools"    // Tool registry, gate checks, execution
	CategoryOps      Category = "ops"      // Tool operation tracking
	CategoryDispatch Category = "dispatch" // Sub-agent dispatch and lifecycle
	CategoryStore    Category = "store"    // SQLite store operations
	CategoryConfig   Category = "config"   // Config load and hot reload
	CategoryLLM      Category = "llm"      // LLM boundary calls
)

var (
	mu      sync.RWMutex
	root    *zap.SugaredLogger
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Options controls logger construction.
type Options struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoder, caller info
}

// Initialize builds the shared zap logger. Safe to call more than once;
// the last call wins.
func Initialize(opts Options) error {
	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return err
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger.Sugar()
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// SetLogger installs an externally built logger (used by tests to capture output).
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l.Sugar()
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}

// Get returns the logger for a category, creating it on first use.
// Returns a no-op logger if Initialize has not been called.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	r := root
	mu.RUnlock()

	if r == nil {
		return zap.NewNop().Sugar()
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := r.Named(string(cat))
	loggers[cat] = l
	return l
}

// Convenience helpers mirroring the most chatty subsystems.

// Session logs at info level to the session category.
func Session(format string, args ...any) { Get(CategorySession).Infof(format, args...) }

// SessionDebug logs at debug level to the session category.
func SessionDebug(format string, args ...any) { Get(CategorySession).Debugf(format, args...) }

// Ledger logs at info level to the ledger category.
func Ledger(format string, args ...any) { Get(CategoryLedger).Infof(format, args...) }

// LedgerDebug logs at debug level to the ledger category.
func LedgerDebug(format string, args ...any) { Get(CategoryLedger).Debugf(format, args...) }

// Phase logs at info level to the phase category.
func Phase(format string, args ...any) { Get(CategoryPhase).Infof(format, args...) }

// Artifact logs at info level to the artifact category.
func Artifact(format string, args ...any) { Get(CategoryArtifact).Infof(format, args...) }

// ArtifactDebug logs at debug level to the artifact category.
func ArtifactDebug(format string, args ...any) { Get(CategoryArtifact).Debugf(format, args...) }

// Tools logs at info level to the tools category.
func Tools(format string, args ...any) { Get(CategoryTools).Infof(format, args...) }

// ToolsDebug logs at debug level to the tools category.
func ToolsDebug(format string, args ...any) { Get(CategoryTools).Debugf(format, args...) }

// Ops logs at info level to the ops category.
func Ops(format string, args ...any) { Get(CategoryOps).Infof(format, args...) }

// OpsDebug logs at debug level to the ops category.
func OpsDebug(format string, args ...any) { Get(CategoryOps).Debugf(format, args...) }

// Dispatch logs at info level to the dispatch category.
func Dispatch(format string, args ...any) { Get(CategoryDispatch).Infof(format, args...) }

// DispatchDebug logs at debug level to the dispatch category.
func DispatchDebug(format string, args ...any) { Get(CategoryDispatch).Debugf(format, args...) }

// Store logs at info level to the store category.
func Store(format string, args ...any) { Get(CategoryStore).Infof(format, args...) }

// StoreDebug logs at debug level to the store category.
func StoreDebug(format string, args ...any) { Get(CategoryStore).Debugf(format, args...) }

// Events logs at debug level to the events category. The bus is hot, so
// there is deliberately no info-level helper.
func Events(format string, args ...any) { Get(CategoryEvents).Debugf(format, args...) }
