// Command rpcsh is an interactive console for ad hoc RPC calls and
// database queries against live servers.
package main

import (
	"os"

	"github.com/rpcsh/rpcsh/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
