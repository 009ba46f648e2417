// Package handle provides the console's connection handles: named, live
// connections to remote RPC endpoints or databases with a uniform
// invoke/query surface.
package handle

// Kind discriminates the two handle variants.
type Kind int

const (
	KindRPC Kind = iota
	KindDB
)

func (k Kind) String() string {
	if k == KindDB {
		return "db"
	}
	return "rpc"
}

// Handle is a named connection registered with the client registry. A
// handle's registry name is stable for its lifetime even if the
// underlying transport is transparently re-established.
type Handle interface {
	// Name returns the registry name of the handle.
	Name() string

	// SetName is called once by the registry when the handle is
	// registered.
	SetName(name string)

	// Kind reports whether this is an RPC or a database handle.
	Kind() Kind

	// Target describes the remote endpoint for display.
	Target() string
}
