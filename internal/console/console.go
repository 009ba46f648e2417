// Package console implements the interactive command interpreter: it
// reads one line at a time, classifies it as a built-in or a free-form
// handle invocation, and renders results through the typed printer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/rpcsh/rpcsh/internal/config"
	"github.com/rpcsh/rpcsh/internal/session"
)

// Console drives one interpreter session. It is single-threaded and
// synchronous: each line runs to completion, network round-trips
// included, before the next is read.
type Console struct {
	sess *session.Session
	cfg  *config.Config

	in   io.Reader
	out  io.Writer
	errw io.Writer

	// interactive selects forgive-and-continue error handling; script
	// (redirected-input) mode is fail-fast instead.
	interactive bool

	sh Shell

	// interrupts counts consecutive interrupts with no successful
	// command in between. Two in a row end the session.
	interrupts int
}

// Option configures a Console.
type Option func(*Console)

// WithStreams overrides the console's input and output streams.
func WithStreams(in io.Reader, out, errw io.Writer) Option {
	return func(c *Console) {
		c.in, c.out, c.errw = in, out, errw
	}
}

// WithInteractive forces interactive or script mode regardless of what
// the input stream looks like.
func WithInteractive(interactive bool) Option {
	return func(c *Console) { c.interactive = interactive }
}

// WithShell overrides the shell-escape collaborator.
func WithShell(sh Shell) Option {
	return func(c *Console) { c.sh = sh }
}

// New creates a console bound to a session.
func New(sess *session.Session, cfg *config.Config, opts ...Option) *Console {
	c := &Console{
		sess: sess,
		cfg:  cfg,
		in:   os.Stdin,
		out:  os.Stdout,
		errw: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sh == nil {
		c.sh = &systemShell{in: c.in, out: c.out, errw: c.errw}
	}
	return c
}

// Run executes the session and returns the process exit code.
func (c *Console) Run(ctx context.Context) int {
	if c.interactive {
		return c.runInteractive(ctx)
	}
	return c.runScript(ctx)
}

// runInteractive is the human-terminal loop: errors are printed and the
// session keeps going, except for a double interrupt.
func (c *Console) runInteractive(ctx context.Context) int {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     c.cfg.HistoryFile,
		AutoComplete:    &sessionCompleter{sess: c.sess},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           readCloser(c.in),
		Stdout:          writerOrStdout(c.out),
	})
	if err != nil {
		fmt.Fprintf(c.errw, "failed to initialize console: %v\n", err)
		return -1
	}
	defer func() { _ = rl.Close() }()

	fmt.Fprintf(c.out, "%s console (charset %s)\n", c.sess.Name, c.sess.Charset)
	fmt.Fprintln(c.out, "Type ? for help, exit to leave.")

	c.runRCFile(ctx)

	for {
		rl.SetPrompt(c.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			c.interrupts++
			if c.interrupts >= 2 {
				return 0
			}
			fmt.Fprintln(c.out, "Interrupted. Press ^C again to leave the console.")
			continue
		}
		if errors.Is(err, io.EOF) {
			return 0
		}
		if err != nil {
			fmt.Fprintf(c.errw, "read error: %v\n", err)
			return -1
		}

		switch e := c.Exec(ctx, line).(type) {
		case nil:
			c.interrupts = 0
		case *exitRequest:
			return e.code
		default:
			if isInterrupt(e) {
				c.interrupts++
				if c.interrupts >= 2 {
					return 0
				}
				fmt.Fprintln(c.out, "Call interrupted. Press ^C again to leave the console.")
				continue
			}
			fmt.Fprintf(c.errw, "Error: %v\n", e)
		}
	}
}

// runScript is the redirected-input loop. Any failure is fatal: the
// error and its line number are reported and the process stops with a
// non-zero status before the next line runs.
func (c *Console) runScript(ctx context.Context) int {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		switch e := c.Exec(ctx, scanner.Text()).(type) {
		case nil:
		case *exitRequest:
			return e.code
		default:
			fmt.Fprintf(c.errw, "Error on line %d: %v\n", lineNo, e)
			return -1
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(c.errw, "read error: %v\n", err)
		return -1
	}
	return 0
}

// runRCFile executes the run-control file before the first prompt.
// A missing file is fine; a failing line is reported and stops the
// rest of the file, not the session.
func (c *Console) runRCFile(ctx context.Context) {
	if c.cfg.RCFile == "" {
		return
	}
	if _, err := os.Stat(c.cfg.RCFile); err != nil {
		return
	}
	if err := c.runFile(ctx, c.cfg.RCFile); err != nil {
		if _, ok := err.(*exitRequest); ok {
			return
		}
		fmt.Fprintf(c.errw, "Error in %s: %v\n", c.cfg.RCFile, err)
	}
}

// runFile runs a line-oriented command file, stopping at the first
// failing line.
func (c *Console) runFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &UserInputError{Msg: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := c.Exec(ctx, scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (c *Console) prompt() string {
	return c.sess.Name + "> "
}

// callContext bounds one remote call with the session timeout and
// cancels it on an interrupt signal.
func (c *Console) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	if c.sess.TimeoutMS > 0 {
		ctx, cancel := context.WithTimeout(ctx, time.Duration(c.sess.TimeoutMS)*time.Millisecond)
		return ctx, func() { cancel(); stop() }
	}
	return ctx, stop
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}

// formatDuration reports a call duration in seconds, milliseconds or
// microseconds depending on magnitude, three decimals each.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.3f s", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.3f ms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.3f us", float64(d.Nanoseconds())/1e3)
	}
}

// writerOrStdout adapts an io.Writer for readline's Stdout field.
func writerOrStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// readCloser adapts the console input stream for readline, which wants
// a closer.
func readCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}

// sessionCompleter offers the registry's completion candidates plus the
// built-in verbs. It reads the registry on every keystroke so entries
// added by connect show up immediately.
type sessionCompleter struct {
	sess *session.Session
}

func (s *sessionCompleter) Do(line []rune, pos int) ([][]rune, int) {
	prefix := string(line[:pos])
	start := strings.LastIndexAny(prefix, " \t") + 1
	word := prefix[start:]

	candidates := append(builtinNames(), s.sess.Registry.Completions()...)
	var out [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(cand, word) {
			out = append(out, []rune(cand[len(word):]))
		}
	}
	return out, len([]rune(word))
}
