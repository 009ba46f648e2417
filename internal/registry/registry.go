// Package registry maintains the session's named table of connection
// handles, allocates auto-generated names, and keeps the interactive
// completion index in sync with what each remote endpoint exposes.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/rpcsh/rpcsh/internal/handle"
)

// Registry maps handle names to connection handles. Names and
// completion entries are append-only for the life of a session.
type Registry struct {
	mu sync.RWMutex

	handles map[string]handle.Handle

	// order records registration order for display.
	order []string

	// counter backs auto-generated clientN names. It starts at 1 and
	// never reuses a number, even when an explicit name is registered
	// in between.
	counter int

	completions []string
	compSeen    map[string]struct{}

	logger *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		handles:  make(map[string]handle.Handle),
		counter:  1,
		compSeen: make(map[string]struct{}),
		logger:   logger,
	}
}

// Register adds a handle under the given name, or under the next
// auto-generated clientN name when name is empty, and returns the name
// used. Registering an existing name replaces the handle but keeps the
// name's position; explicit names never consume the auto-name counter.
func (r *Registry) Register(name string, h handle.Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		name = "client" + strconv.Itoa(r.counter)
		r.counter++
	}
	if _, exists := r.handles[name]; !exists {
		r.order = append(r.order, name)
	}
	r.handles[name] = h
	h.SetName(name)

	r.logger.Debug("handle registered",
		slog.String("name", name),
		slog.String("kind", h.Kind().String()),
		slog.String("target", h.Target()))
	return name
}

// Get returns the handle registered under name.
func (r *Registry) Get(name string) (handle.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// Names returns handle names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve finds the longest dotted prefix of expr naming a registered
// handle and splits it off: "client2.getUser(5)" becomes the handle
// registered as "client2" plus the remainder "getUser(5)". It returns
// false when no prefix matches.
func (r *Registry) Resolve(expr string) (handle.Handle, string, bool) {
	name := expr
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}

	segments := strings.Split(name, ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	for n := len(segments); n >= 1; n-- {
		prefix := strings.Join(segments[:n], ".")
		if _, ok := r.handles[prefix]; !ok {
			continue
		}
		remainder := strings.TrimPrefix(expr, prefix)
		remainder = strings.TrimPrefix(remainder, ".")
		return r.handles[prefix], remainder, true
	}
	return nil, "", false
}

// RebuildCompletions queries the remote method directory of an RPC
// handle and appends "{name}.{method}" candidates for it. Completion is
// best-effort: every failure except connection-refused is swallowed so
// it can never block a connect.
func (r *Registry) RebuildCompletions(ctx context.Context, name string) error {
	h, ok := r.Get(name)
	if !ok {
		return nil
	}
	rh, ok := h.(*handle.RPCHandle)
	if !ok {
		return nil
	}

	methods, err := rh.Methods(ctx)
	if err != nil {
		var refused *handle.ConnRefusedError
		if errors.As(err, &refused) {
			return err
		}
		r.logger.Debug("completion rebuild skipped",
			slog.String("handle", name),
			slog.String("error", err.Error()))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range methods {
		entry := name + "." + m
		if _, seen := r.compSeen[entry]; seen {
			continue
		}
		r.compSeen[entry] = struct{}{}
		r.completions = append(r.completions, entry)
	}
	return nil
}

// Completions returns a snapshot of the completion candidates.
func (r *Registry) Completions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.completions))
	copy(out, r.completions)
	return out
}
