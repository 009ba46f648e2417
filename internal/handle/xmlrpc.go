package handle

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kolo/xmlrpc"
)

// xmlrpcCaller is the default Caller implementation, speaking XML-RPC
// over HTTP with the handle's connect/read/write timeouts applied at
// the transport layer.
type xmlrpcCaller struct {
	client *xmlrpc.Client
}

func newXMLRPCCaller(target string, t Timeouts) (*xmlrpcCaller, error) {
	dialer := &net.Dialer{Timeout: msDuration(t.ConnectMS)}
	writeTimeout := msDuration(t.WriteMS)
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, write: writeTimeout}, nil
		},
		ResponseHeaderTimeout: msDuration(t.ReadMS),
		Proxy:                 proxyFromEnv,
	}
	client, err := xmlrpc.NewClient(target, transport)
	if err != nil {
		return nil, err
	}
	return &xmlrpcCaller{client: client}, nil
}

// proxyFromEnv honors the standard outbound proxy environment.
func proxyFromEnv(req *http.Request) (*url.URL, error) {
	return http.ProxyFromEnvironment(req)
}

// Call runs the wire call in its own goroutine so an interrupt or
// timeout on ctx aborts the wait. The underlying request cannot be torn
// down mid-flight; an abandoned call finishes in the background bounded
// by the transport timeouts.
func (c *xmlrpcCaller) Call(ctx context.Context, method string, args []any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type callResult struct {
		reply any
		err   error
	}
	done := make(chan callResult, 1)
	go func() {
		var reply any
		err := c.client.Call(method, args, &reply)
		done <- callResult{reply: reply, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.reply, res.err
	}
}

// deadlineConn applies a fresh write deadline before every write, so a
// stalled request upload fails instead of hanging forever.
type deadlineConn struct {
	net.Conn
	write time.Duration
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.write > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.write))
	}
	return c.Conn.Write(p)
}

func msDuration(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
