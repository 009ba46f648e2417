package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpcsh/rpcsh/internal/handle"
	"github.com/rpcsh/rpcsh/internal/value"
)

// UserInputError is a malformed console command. It is fatal only in
// script mode.
type UserInputError struct {
	Msg string
}

func (e *UserInputError) Error() string { return e.Msg }

// exitRequest carries the exit code of an exit/quit command through the
// interpreter loop.
type exitRequest struct {
	code int
}

func (e *exitRequest) Error() string { return fmt.Sprintf("exit %d", e.code) }

// Exec classifies and runs one line of console input. Classification
// order: blank or comment, trailing help token, built-in verb,
// free-form expression.
func (c *Console) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	fields := strings.Fields(line)

	// "foo(... ) -h" is rewritten into a help lookup on foo's bare name.
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if last == "-h" || last == "--help" {
			return c.execHelp(ctx, bareName(fields[0]), false)
		}
	}

	if strings.HasPrefix(line, "!") {
		return c.execUnchecked(ctx, strings.TrimSpace(line[1:]))
	}

	switch fields[0] {
	case "exit", "quit":
		return c.execExit(fields[1:])
	case "license":
		fmt.Fprintln(c.out, licenseText)
		return nil
	case "connect":
		return c.execConnect(ctx, fields[1:])
	case "connectdb":
		return c.execConnectDB(ctx, fields[1:])
	case "charset":
		return c.execCharset(fields[1:])
	case "name":
		return c.execName(fields[1:])
	case "autocommit":
		return c.execFlag(fields[1:], "autocommit", &c.sess.Autocommit)
	case "autosort":
		return c.execFlag(fields[1:], "autosort", &c.sess.Autosort)
	case "timeout":
		return c.execTimeout(fields[1:])
	case "import":
		return c.execImport(ctx, fields[1:])
	case "shell":
		return c.sh.Interactive(ctx)
	case "exec":
		if len(fields) < 2 {
			return &UserInputError{Msg: "usage: exec <command>"}
		}
		return c.sh.Run(ctx, strings.TrimSpace(line[len("exec"):]))
	case "?", "help":
		if len(fields) < 2 {
			c.printGeneralHelp()
			return nil
		}
		return c.execHelp(ctx, fields[1], false)
	case "??":
		if len(fields) < 2 {
			c.printGeneralHelp()
			return nil
		}
		return c.execHelp(ctx, fields[1], true)
	}

	return c.evalExpression(ctx, line)
}

// bareName strips a trailing call-parenthesis from a token.
func bareName(tok string) string {
	if i := strings.IndexByte(tok, '('); i >= 0 {
		return tok[:i]
	}
	return tok
}

// evalExpression runs a free-form invocation: "{handle}.{method}(args)"
// or a bare handle name. A trailing "*" asks for the fully-literal
// rendering instead of the typed printer.
func (c *Console) evalExpression(ctx context.Context, line string) error {
	literal := false
	if strings.HasSuffix(line, "*") {
		literal = true
		line = strings.TrimSpace(strings.TrimSuffix(line, "*"))
	}

	h, rest, ok := c.sess.Registry.Resolve(line)
	if !ok {
		return &UserInputError{Msg: fmt.Sprintf("unknown command or handle: %s", line)}
	}
	c.sess.Default = h.Name()

	if rest == "" {
		fmt.Fprintf(c.out, "%s: %s handle for %s\n", h.Name(), h.Kind(), h.Target())
		return nil
	}

	method, args, err := parseCall(rest)
	if err != nil {
		return err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	start := time.Now()
	result, callErr := c.dispatch(callCtx, h, method, args)
	elapsed := time.Since(start)

	if callErr == nil && errors.Is(callCtx.Err(), context.Canceled) {
		// Database calls report their failures as data, so the
		// interrupt has to be picked up here or it would be mistaken
		// for an ordinary statement error.
		callErr = callCtx.Err()
	}
	if callErr != nil {
		return callErr
	}

	if literal {
		fmt.Fprintf(c.out, "result = %s\n", value.Literal(result))
	} else {
		value.RenderResult(c.out, result, c.sess.Autosort)
	}
	fmt.Fprintf(c.out, "time: %s\n", formatDuration(elapsed))
	return nil
}

// dispatch routes a parsed call to the handle's invoke or query
// surface.
func (c *Console) dispatch(ctx context.Context, h handle.Handle, method string, args []any) (value.Value, error) {
	switch hh := h.(type) {
	case *handle.RPCHandle:
		return hh.Invoke(ctx, method, args)
	case *handle.DBHandle:
		switch method {
		case "execute", "query":
			if len(args) != 1 {
				return nil, &UserInputError{Msg: fmt.Sprintf("usage: %s.%s(\"<sql>\")", h.Name(), method)}
			}
			stmt, ok := args[0].(string)
			if !ok {
				return nil, &UserInputError{Msg: fmt.Sprintf("%s.%s takes a string statement", h.Name(), method)}
			}
			return hh.Query(ctx, stmt, c.sess.Autocommit), nil
		case "commit":
			return hh.Commit(ctx, c.sess.Autocommit), nil
		case "rollback":
			return hh.Rollback(ctx, c.sess.Autocommit), nil
		default:
			return nil, &UserInputError{Msg: fmt.Sprintf("unknown operation %s on database handle %s", method, h.Name())}
		}
	default:
		return nil, &UserInputError{Msg: fmt.Sprintf("cannot invoke through handle %s", h.Name())}
	}
}

// execUnchecked is the escape-hatch command mode: the remainder of the
// line goes verbatim to the current default handle with no parsing and
// no autocommit bracketing. Only database handles accept it.
func (c *Console) execUnchecked(ctx context.Context, stmt string) error {
	if stmt == "" {
		return &UserInputError{Msg: "usage: !<statement>"}
	}
	h, ok := c.sess.Registry.Get(c.sess.Default)
	if !ok {
		return &UserInputError{Msg: "no active handle for unchecked command"}
	}
	dbh, ok := h.(*handle.DBHandle)
	if !ok {
		return &UserInputError{Msg: "unchecked commands require a database handle"}
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	res := dbh.Raw(callCtx, stmt)
	if errors.Is(callCtx.Err(), context.Canceled) {
		return callCtx.Err()
	}
	value.RenderResult(c.out, res, c.sess.Autosort)
	return nil
}

// parseCall splits "method(arg, arg)" into the method name and parsed
// positional argument literals.
func parseCall(expr string) (string, []any, error) {
	open := strings.IndexByte(expr, '(')
	if open < 0 {
		// A bare dotted remainder is a zero-argument call.
		if strings.ContainsAny(expr, " \t") {
			return "", nil, &UserInputError{Msg: fmt.Sprintf("malformed call: %s", expr)}
		}
		return expr, nil, nil
	}
	if !strings.HasSuffix(expr, ")") {
		return "", nil, &UserInputError{Msg: fmt.Sprintf("missing closing parenthesis: %s", expr)}
	}
	method := expr[:open]
	if method == "" {
		return "", nil, &UserInputError{Msg: fmt.Sprintf("malformed call: %s", expr)}
	}
	args, err := parseArgs(expr[open+1 : len(expr)-1])
	if err != nil {
		return "", nil, err
	}
	return method, args, nil
}

// parseArgs parses a comma-separated list of positional literals:
// integers, floats, double-quoted strings, booleans and nil.
func parseArgs(list string) ([]any, error) {
	var args []any
	for _, tok := range splitArgs(list) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		arg, err := parseLiteral(tok)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// splitArgs splits on top-level commas, keeping quoted strings intact.
func splitArgs(list string) []string {
	var parts []string
	var cur strings.Builder
	inString := false
	for i := 0; i < len(list); i++ {
		ch := list[i]
		switch {
		case ch == '"':
			inString = !inString
			cur.WriteByte(ch)
		case ch == ',' && !inString:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func parseLiteral(tok string) (any, error) {
	if strings.HasPrefix(tok, `"`) {
		if len(tok) < 2 || !strings.HasSuffix(tok, `"`) {
			return nil, &UserInputError{Msg: fmt.Sprintf("unterminated string: %s", tok)}
		}
		return tok[1 : len(tok)-1], nil
	}
	switch tok {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	case "nil", "None", "null":
		return nil, nil
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return int(n), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f, nil
	}
	return nil, &UserInputError{Msg: fmt.Sprintf("cannot parse argument: %s", tok)}
}
