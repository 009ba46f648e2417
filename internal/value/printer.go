package value

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// indentUnit is the fixed indentation added per nesting level.
const indentUnit = "    "

// cycleMarker replaces a container that is already being rendered
// further up the same path. Without it a self-referential array or
// struct would recurse until the process dies.
const cycleMarker = "<cycle>"

// seenSet tracks the backing-array identities of the containers on the
// current render path.
type seenSet map[uintptr]struct{}

// RenderResult writes the top-level "result = " line for a call result.
// This is the only place the printer touches an output stream; nested
// rendering is pure string production.
func RenderResult(w io.Writer, v Value, sortKeys bool) {
	_, _ = fmt.Fprintf(w, "result = %s\n", renderTagged(v, 0, sortKeys, make(seenSet)))
}

// Render produces the typed textual form of v at the given nesting
// level. It is total over the closed union: values outside it yield an
// unknown-type diagnostic, and cyclic containers a cycle marker, rather
// than a panic or runaway recursion.
func Render(v Value, indent int, sortKeys bool) string {
	return render(v, indent, sortKeys, make(seenSet))
}

func render(v Value, indent int, sortKeys bool, seen seenSet) string {
	switch x := v.(type) {
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Long:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case Bool:
		if x {
			return "True"
		}
		return "False"
	case String:
		// Embedded quotes are deliberately left unescaped.
		return `"` + string(x) + `"`
	case Decimal:
		return decimal.Decimal(x).String()
	case Date:
		return fmt.Sprintf("%04d-%02d-%02d", x.Year, int(x.Month), x.Day)
	case Time:
		return fmt.Sprintf("%02d:%02d:%02d", x.Hour, x.Minute, x.Second)
	case DateTime:
		return renderDateTime(x)
	case Array:
		return renderArray(x, indent, sortKeys, seen)
	case Struct:
		return renderStruct(x, indent, sortKeys, seen)
	case Nil:
		return "None"
	case nil:
		return "None"
	default:
		return fmt.Sprintf("<unknown type %T>", v)
	}
}

// Literal produces the alternate fully-literal, single-line rendering
// requested by a trailing "*" on a console expression.
func Literal(v Value) string {
	return literal(v, make(seenSet))
}

func literal(v Value, seen seenSet) string {
	switch x := v.(type) {
	case String:
		return strconv.Quote(string(x))
	case Array:
		release, cyclic := seen.enter(x)
		if cyclic {
			return cycleMarker
		}
		defer release()
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = literal(el, seen)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Struct:
		release, cyclic := seen.enter(x)
		if cyclic {
			return cycleMarker
		}
		defer release()
		parts := make([]string, len(x))
		for i, m := range x {
			parts[i] = strconv.Quote(m.Key) + ": " + literal(m.Value, seen)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case DateTime:
		return x.Native().Format(time.RFC3339)
	default:
		return render(v, 0, false, seen)
	}
}

// enter marks a container as being on the render path. It reports true
// when the container is already there, which means a cycle; otherwise
// the returned func removes the mark again so shared (acyclic)
// containers still render in full everywhere they appear.
func (s seenSet) enter(container any) (release func(), cyclic bool) {
	rv := reflect.ValueOf(container)
	if rv.Len() == 0 {
		// An empty container cannot close a cycle.
		return func() {}, false
	}
	id := rv.Pointer()
	if _, ok := s[id]; ok {
		return nil, true
	}
	s[id] = struct{}{}
	return func() { delete(s, id) }, false
}

// label returns the printed type label for a tag. Booleans and null
// print with no label.
func label(t Tag) string {
	switch t {
	case TagNone, TagBool:
		return ""
	default:
		return string(t)
	}
}

func renderTagged(v Value, indent int, sortKeys bool, seen seenSet) string {
	if l := label(Classify(v)); l != "" {
		return l + " " + render(v, indent, sortKeys, seen)
	}
	return render(v, indent, sortKeys, seen)
}

// renderDateTime renders D.M.Y H:Min:Sec followed by the numeric zone
// offset (zone hours times 100, sign from non-negativity) and the
// native representation in parentheses.
func renderDateTime(d DateTime) string {
	sign := "+"
	off := d.Zone * 100
	if d.Zone < 0 {
		sign = "-"
		off = -off
	}
	return fmt.Sprintf("%d.%d.%d %02d:%02d:%02d %s%04d (%s)",
		d.Day, int(d.Month), d.Year, d.Hour, d.Minute, d.Second,
		sign, off, d.Native().Format(time.RFC3339))
}

func renderStruct(s Struct, indent int, sortKeys bool, seen seenSet) string {
	release, cyclic := seen.enter(s)
	if cyclic {
		return cycleMarker
	}
	defer release()

	members := s
	if sortKeys {
		members = make(Struct, len(s))
		copy(members, s)
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Key < members[j].Key
		})
	}

	pad := strings.Repeat(indentUnit, indent+1)
	var b strings.Builder
	b.WriteString("{\n")
	for _, m := range members {
		b.WriteString(pad)
		if l := label(Classify(m.Value)); l != "" {
			b.WriteString(l)
			b.WriteString(" ")
		}
		b.WriteString(m.Key)
		b.WriteString(" = ")
		b.WriteString(render(m.Value, indent+1, sortKeys, seen))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat(indentUnit, indent))
	b.WriteString("}")
	return b.String()
}

func renderArray(a Array, indent int, sortKeys bool, seen seenSet) string {
	release, cyclic := seen.enter(a)
	if cyclic {
		return cycleMarker
	}
	defer release()

	pad := strings.Repeat(indentUnit, indent+1)
	var b strings.Builder
	b.WriteString("(\n")
	for i, el := range a {
		b.WriteString(pad)
		b.WriteString("[")
		b.WriteString(strconv.Itoa(i))
		b.WriteString("] ")
		if l := label(Classify(el)); l != "" {
			b.WriteString(l)
			b.WriteString(" ")
		}
		b.WriteString("= ")
		b.WriteString(render(el, indent+1, sortKeys, seen))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat(indentUnit, indent))
	b.WriteString(")")
	return b.String()
}
