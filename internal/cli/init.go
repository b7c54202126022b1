// Package cli provides common CLI initialization utilities shared by the
// ledgerbook commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"ledgerbook/internal/api"
	"ledgerbook/internal/config"
	"ledgerbook/internal/log"
)

// SetupLogger initializes structured logging at the given level, writing to
// w. Returns the configured logger and sets it as the default logger.
func SetupLogger(level string, w io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env files for local development. A missing file is
// not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadAndValidateConfig loads configuration, honouring LEDGERBOOK_CONFIG,
// and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// TerminalNavigator stands in for screen navigation in a terminal: the
// location is the running command and a redirect prints a hint.
type TerminalNavigator struct {
	mu       sync.Mutex
	out      io.Writer
	location string
}

var _ api.Navigator = (*TerminalNavigator)(nil)

func NewTerminalNavigator(out io.Writer, command string) *TerminalNavigator {
	return &TerminalNavigator{out: out, location: "/" + strings.TrimPrefix(command, "/")}
}

func (n *TerminalNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *TerminalNavigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.location == path {
		return
	}
	n.location = path
	if path == api.LoginPath {
		fmt.Fprintln(n.out, "session ended, run `ledgerbook login` to sign in again")
	}
}
