package handle

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXMLRPCCallHonorsCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	caller, err := newXMLRPCCaller(srv.URL, Timeouts{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = caller.Call(ctx, "echo", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestXMLRPCCallRejectsCanceledContext(t *testing.T) {
	caller, err := newXMLRPCCaller("http://127.0.0.1:1/RPC2", Timeouts{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = caller.Call(ctx, "echo", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeadlineConnWrite(t *testing.T) {
	rc := &recordConn{}
	dc := &deadlineConn{Conn: rc, write: time.Second}

	n, err := dc.Write([]byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, rc.deadlines, 1)
	assert.True(t, rc.deadlines[0].After(time.Now().Add(500*time.Millisecond)))

	// A zero timeout leaves the connection without deadlines.
	dc.write = 0
	_, err = dc.Write([]byte("z"))
	require.NoError(t, err)
	assert.Len(t, rc.deadlines, 1)
}

// recordConn records write deadlines. The embedded nil Conn covers the
// rest of the interface, which these tests never touch.
type recordConn struct {
	net.Conn
	deadlines []time.Time
}

func (c *recordConn) Write(p []byte) (int, error) { return len(p), nil }

func (c *recordConn) SetWriteDeadline(tm time.Time) error {
	c.deadlines = append(c.deadlines, tm)
	return nil
}
