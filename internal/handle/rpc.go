package handle

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rpcsh/rpcsh/internal/value"
)

// introspectionPrefix is the reserved namespace of the remote method
// directory. Methods under it are excluded from completion.
const introspectionPrefix = "system."

// Caller is the opaque wire-protocol contract: call a method by name
// with positional arguments, get back a dynamically-typed value or a
// protocol error.
type Caller interface {
	Call(ctx context.Context, method string, args []any) (any, error)
}

// Timeouts carries the RPC transport timeouts in milliseconds.
type Timeouts struct {
	ConnectMS int
	ReadMS    int
	WriteMS   int
}

// RPCHandle is a named connection to a remote RPC endpoint.
type RPCHandle struct {
	name    string
	url     string
	caller  Caller
	timeout Timeouts
	logger  *slog.Logger
}

// NewRPC creates an RPC handle over the given transport. A nil caller
// selects the default XML-RPC transport; a nil logger discards logs.
func NewRPC(url string, t Timeouts, caller Caller, logger *slog.Logger) (*RPCHandle, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if caller == nil {
		c, err := newXMLRPCCaller(url, t)
		if err != nil {
			return nil, err
		}
		caller = c
	}
	return &RPCHandle{url: url, caller: caller, timeout: t, logger: logger}, nil
}

func (h *RPCHandle) Name() string        { return h.name }
func (h *RPCHandle) SetName(name string) { h.name = name }
func (h *RPCHandle) Kind() Kind          { return KindRPC }
func (h *RPCHandle) Target() string      { return h.url }

// Invoke calls a remote method by name with positional arguments and
// converts the reply into a Value. Transport failures come back
// classified: *ConnRefusedError, *Fault or *TransportError.
func (h *RPCHandle) Invoke(ctx context.Context, method string, args []any) (value.Value, error) {
	callID := uuid.NewString()
	h.logger.Debug("rpc call",
		slog.String("handle", h.name),
		slog.String("method", method),
		slog.String("call_id", callID))

	raw, err := h.caller.Call(ctx, method, args)
	if err != nil {
		err = classifyCallError(h.url, method, err)
		h.logger.Debug("rpc call failed",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		return nil, err
	}
	return value.FromAny(raw), nil
}

// Methods queries the remote method directory, excluding the reserved
// introspection namespace.
func (h *RPCHandle) Methods(ctx context.Context) ([]string, error) {
	raw, err := h.caller.Call(ctx, "system.listMethods", nil)
	if err != nil {
		return nil, classifyCallError(h.url, "system.listMethods", err)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	var methods []string
	for _, el := range list {
		name, ok := el.(string)
		if !ok {
			continue
		}
		if len(name) >= len(introspectionPrefix) && name[:len(introspectionPrefix)] == introspectionPrefix {
			continue
		}
		methods = append(methods, name)
	}
	return methods, nil
}

// MethodHelp fetches the remote documentation string for a method.
func (h *RPCHandle) MethodHelp(ctx context.Context, method string) (string, error) {
	raw, err := h.caller.Call(ctx, "system.methodHelp", []any{method})
	if err != nil {
		return "", classifyCallError(h.url, "system.methodHelp", err)
	}
	doc, _ := raw.(string)
	return doc, nil
}
