package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rpcsh/rpcsh/internal/handle"
)

const defaultRPCPort = 80

const licenseText = `rpcsh is free software, distributed under the terms of the
GNU General Public License, version 2 or later. It comes with
ABSOLUTELY NO WARRANTY.`

// builtinNames lists the fixed command verbs for completion.
func builtinNames() []string {
	return []string{
		"exit", "quit", "license", "connect", "connectdb", "charset",
		"name", "autocommit", "autosort", "timeout", "import", "shell",
		"exec", "help",
	}
}

func (c *Console) execExit(args []string) error {
	code := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return &UserInputError{Msg: fmt.Sprintf("exit: bad status code %q", args[0])}
		}
		code = n
	}
	return &exitRequest{code: code}
}

// execConnect handles "connect [name] host [port]" and
// "connect [name] url".
func (c *Console) execConnect(ctx context.Context, args []string) error {
	name, target, err := parseConnectArgs(args)
	if err != nil {
		return err
	}

	h, err := handle.NewRPC(target, c.rpcTimeouts(), nil, c.sess.Logger)
	if err != nil {
		return &UserInputError{Msg: fmt.Sprintf("connect: %v", err)}
	}
	name = c.sess.Registry.Register(name, h)
	c.sess.Default = name

	if err := c.sess.Registry.RebuildCompletions(ctx, name); err != nil {
		// Connection refused is reported but never fatal: the handle
		// stays registered and the console keeps running without
		// completions for it.
		fmt.Fprintf(c.errw, "%v\n", err)
	}
	fmt.Fprintf(c.out, "new client known as '%s'\n", name)
	return nil
}

func (c *Console) rpcTimeouts() handle.Timeouts {
	return handle.Timeouts{
		ConnectMS: c.sess.TimeoutMS,
		ReadMS:    c.sess.TimeoutMS,
		WriteMS:   c.sess.TimeoutMS,
	}
}

// parseConnectArgs resolves the connect argument grammar into an
// optional explicit name and a target URL.
func parseConnectArgs(args []string) (name, target string, err error) {
	switch len(args) {
	case 1:
		return "", endpointURL(args[0], defaultRPCPort), nil
	case 2:
		if port, perr := strconv.Atoi(args[1]); perr == nil {
			return "", endpointURL(args[0], port), nil
		}
		return args[0], endpointURL(args[1], defaultRPCPort), nil
	case 3:
		port, perr := strconv.Atoi(args[2])
		if perr != nil {
			return "", "", &UserInputError{Msg: fmt.Sprintf("connect: bad port %q", args[2])}
		}
		return args[0], endpointURL(args[1], port), nil
	default:
		return "", "", &UserInputError{Msg: "usage: connect [name] host [port] | connect [name] url"}
	}
}

// endpointURL synthesizes the endpoint URL for a host or passes a URL
// with an explicit path through verbatim. A bare "0" host maps to the
// loopback address; a missing scheme gets "http://" prefixed.
func endpointURL(hostOrURL string, port int) string {
	if hostOrURL == "0" {
		hostOrURL = "127.0.0.1"
	}
	rest := hostOrURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if strings.ContainsRune(rest, '/') {
		if !strings.Contains(hostOrURL, "://") {
			return "http://" + hostOrURL
		}
		return hostOrURL
	}
	host := hostOrURL
	if !strings.Contains(host, "://") {
		return fmt.Sprintf("http://%s:%d/RPC2", host, port)
	}
	return fmt.Sprintf("%s:%d/RPC2", host, port)
}

// execConnectDB handles "connectdb [name] host dbname user [password]".
// The password defaults to empty text.
func (c *Console) execConnectDB(ctx context.Context, args []string) error {
	var name string
	var cfg handle.DBConfig
	switch len(args) {
	case 3:
		cfg = handle.DBConfig{Host: args[0], Database: args[1], Username: args[2]}
	case 4:
		name = args[0]
		cfg = handle.DBConfig{Host: args[1], Database: args[2], Username: args[3]}
	case 5:
		name = args[0]
		cfg = handle.DBConfig{Host: args[1], Database: args[2], Username: args[3], Password: args[4]}
	default:
		return &UserInputError{Msg: "usage: connectdb [name] host dbname user [password]"}
	}
	if cfg.Host == "0" {
		cfg.Host = "127.0.0.1"
	}

	h := handle.NewDB(cfg, c.sess.Logger)
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	if err := h.Connect(callCtx); err != nil {
		// Database failures are data, not control flow: report inline
		// and keep going, even on script input.
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return nil
	}

	name = c.sess.Registry.Register(name, h)
	c.sess.Default = name
	fmt.Fprintf(c.out, "new client known as '%s'\n", name)
	return nil
}

func (c *Console) execCharset(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "charset is %s\n", c.sess.Charset)
		return nil
	}
	c.sess.Charset = args[0]
	return nil
}

func (c *Console) execName(args []string) error {
	if len(args) == 0 {
		return &UserInputError{Msg: "usage: name <console name>"}
	}
	c.sess.Name = strings.Join(args, " ")
	return nil
}

// execFlag shows or sets a boolean session flag.
func (c *Console) execFlag(args []string, flagName string, flag *bool) error {
	if len(args) == 0 {
		state := "off"
		if *flag {
			state = "on"
		}
		fmt.Fprintf(c.out, "%s is %s\n", flagName, state)
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		*flag = true
	case "off", "false", "0":
		*flag = false
	default:
		return &UserInputError{Msg: fmt.Sprintf("usage: %s [on|off]", flagName)}
	}
	return nil
}

func (c *Console) execTimeout(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "timeout is %d ms\n", c.sess.TimeoutMS)
		return nil
	}
	ms, err := strconv.Atoi(args[0])
	if err != nil || ms < 0 {
		return &UserInputError{Msg: fmt.Sprintf("timeout: bad value %q", args[0])}
	}
	c.sess.TimeoutMS = ms
	return nil
}

func (c *Console) execImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return &UserInputError{Msg: "usage: import <file>"}
	}
	return c.runFile(ctx, args[0])
}

// execHelp answers "? target" and "?? target". The two paths differ:
// plain help resolves the target's owning handle by longest dotted
// prefix and asks the remote endpoint for the method's documentation;
// introspect help describes local console surface only.
func (c *Console) execHelp(ctx context.Context, target string, introspect bool) error {
	target = bareName(target)

	if !introspect {
		if h, rest, ok := c.sess.Registry.Resolve(target); ok {
			return c.remoteHelp(ctx, h, rest)
		}
	}
	if doc, ok := builtinHelp[target]; ok {
		fmt.Fprintln(c.out, doc)
		return nil
	}
	if introspect {
		fmt.Fprintf(c.out, "no local help for %s\n", target)
		return nil
	}
	return &UserInputError{Msg: fmt.Sprintf("no help available for %s", target)}
}

func (c *Console) remoteHelp(ctx context.Context, h handle.Handle, method string) error {
	rh, ok := h.(*handle.RPCHandle)
	if !ok {
		fmt.Fprintf(c.out, "%s: database handle; operations: execute(\"sql\"), commit(), rollback()\n", h.Name())
		return nil
	}
	if method == "" {
		fmt.Fprintf(c.out, "%s: rpc handle for %s\n", h.Name(), h.Target())
		return nil
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	doc, err := rh.MethodHelp(callCtx, method)
	if err != nil {
		return err
	}
	if doc == "" {
		doc = fmt.Sprintf("no documentation for %s", method)
	}
	fmt.Fprintln(c.out, doc)
	return nil
}

var builtinHelp = map[string]string{
	"exit":       "exit [code] - leave the console with an optional status code",
	"quit":       "quit [code] - leave the console with an optional status code",
	"license":    "license - show license terms",
	"connect":    "connect [name] host [port] | connect [name] url - open an RPC client",
	"connectdb":  "connectdb [name] host dbname user [password] - open a database client",
	"charset":    "charset [label] - show or set the input charset",
	"name":       "name <text> - set the console display name",
	"autocommit": "autocommit [on|off] - show or set implicit transaction bracketing",
	"autosort":   "autosort [on|off] - show or set sorted struct printing",
	"timeout":    "timeout [ms] - show or set the remote call timeout",
	"import":     "import <file> - run a command file",
	"shell":      "shell - start an interactive shell",
	"exec":       "exec <command> - run a host command",
	"help":       "? <name> - remote method help; ?? <name> - local help",
	"?":          "? <name> - remote method help; ?? <name> - local help",
	"??":         "?? <name> - local help on a console name",
}

func (c *Console) printGeneralHelp() {
	fmt.Fprintln(c.out, `Commands:
  connect [name] host [port]            open an RPC client (also: connect [name] url)
  connectdb [name] host dbname user     open a database client
  <client>.<method>(args)               invoke a remote method, print the typed result
  <client>.execute("sql")               run a statement on a database client
  ? <client>.<method>                   show the remote documentation for a method
  ?? <name>                             show local help
  autocommit | autosort | timeout | charset | name
                                        show or change session settings
  import <file>                         run a command file
  shell | exec <command> | !<statement> escape hatches
  license | exit [code] | quit [code]

A trailing * on an invocation prints the raw literal result instead of
the typed form. Lines starting with # are comments.`)
}
