// Package session holds the process-wide console state: display
// settings, the active handle, and the client registry. A single
// Session is created at startup and passed explicitly to the
// interpreter, printer and handles instead of living in globals.
package session

import (
	"log/slog"

	"github.com/rpcsh/rpcsh/internal/registry"
)

// Session is the mutable state of one console run. It lives for the
// process lifetime and is persisted nowhere.
type Session struct {
	// Name is the console display name shown in the prompt.
	Name string

	// Charset is the input charset label, sniffed from the locale
	// environment at startup.
	Charset string

	// Autocommit controls implicit BEGIN/COMMIT bracketing of database
	// statements.
	Autocommit bool

	// Autosort controls whether struct members print in lexicographic
	// key order or insertion order. It is a global display setting
	// affecting every render.
	Autosort bool

	// TimeoutMS is the call timeout in milliseconds applied to remote
	// calls issued from the console.
	TimeoutMS int

	// Default is the name of the current default handle, the most
	// recently created or selected one.
	Default string

	Registry *registry.Registry
	Logger   *slog.Logger
}

// New creates a session with its own registry.
func New(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		Registry: registry.New(logger),
		Logger:   logger,
	}
}
