package log

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Module tags used to gate per-subsystem log output.
const (
	ModuleNode    = "node"
	ModuleStorage = "storage"
	ModuleStateDB = "statedb"
	ModuleTrie    = "trie"
	ModuleStats   = "stats"
	ModuleCLI     = "cli"
)

var root atomic.Value

var (
	moduleMu       sync.RWMutex
	enabledModules map[string]bool
)

func init() {
	root.Store(&logger{slog.New(DiscardHandler())})
}

// SetDefault sets the default global logger
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

// Root returns the root logger
func Root() Logger {
	return root.Load().(Logger)
}

// InitLogger sets up the root logger writing to stderr at the given level.
// An empty modules string enables all modules.
func InitLogger(level string, modules string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if err := EnableModules(modules); err != nil {
		return err
	}
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(os.Stderr, lvl)))
	return nil
}

// ParseLevel maps a textual level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "crit":
		return LevelCrit, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// EnableModules restricts module-tagged output to the given comma-separated
// module list. Empty input enables everything.
func EnableModules(modules string) error {
	modules = strings.TrimSpace(modules)
	if modules == "" || modules == "all" {
		moduleMu.Lock()
		enabledModules = nil
		moduleMu.Unlock()
		return nil
	}
	known := map[string]bool{
		ModuleNode:    true,
		ModuleStorage: true,
		ModuleStateDB: true,
		ModuleTrie:    true,
		ModuleStats:   true,
		ModuleCLI:     true,
	}
	enabled := make(map[string]bool)
	for _, m := range strings.Split(modules, ",") {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if !known[m] {
			return fmt.Errorf("unknown log module %q", m)
		}
		enabled[m] = true
	}
	moduleMu.Lock()
	enabledModules = enabled
	moduleMu.Unlock()
	return nil
}

func moduleEnabled(module string) bool {
	if module == "" {
		return true
	}
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	if enabledModules == nil {
		return true
	}
	return enabledModules[module]
}

func Trace(module string, msg string, ctx ...interface{}) {
	if !moduleEnabled(module) {
		return
	}
	Root().Write(LevelTrace, module, msg, ctx...)
}

func Debug(module string, msg string, ctx ...interface{}) {
	if !moduleEnabled(module) {
		return
	}
	Root().Write(slog.LevelDebug, module, msg, ctx...)
}

func Info(module string, msg string, ctx ...interface{}) {
	if !moduleEnabled(module) {
		return
	}
	Root().Write(slog.LevelInfo, module, msg, ctx...)
}

func Warn(module string, msg string, ctx ...interface{}) {
	if !moduleEnabled(module) {
		return
	}
	Root().Write(slog.LevelWarn, module, msg, ctx...)
}

func Error(module string, msg string, ctx ...interface{}) {
	if !moduleEnabled(module) {
		return
	}
	Root().Write(slog.LevelError, module, msg, ctx...)
}

func Crit(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}
