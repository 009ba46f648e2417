package value

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderScalars(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"int", Int(42), "42"},
		{"negative long", Long(-9000000000), "-9000000000"},
		{"float shortest", Float(1.5), "1.5"},
		{"bool true", Bool(true), "True"},
		{"bool false", Bool(false), "False"},
		{"string quoted", String("x"), `"x"`},
		{"string keeps embedded quotes", String(`a"b`), `"a"b"`},
		{"decimal", Decimal(decimal.New(12345, -2)), "123.45"},
		{"date", Date{Year: 2024, Month: time.March, Day: 7}, "2024-03-07"},
		{"time", Time{Hour: 9, Minute: 5, Second: 1}, "09:05:01"},
		{"nil", Nil{}, "None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.in, 0, false))
		})
	}
}

func TestRenderDateTime(t *testing.T) {
	dt := DateTime{
		Year: 2026, Month: time.January, Day: 2,
		Hour: 15, Minute: 4, Second: 5, Zone: 1,
	}
	assert.Equal(t, "2.1.2026 15:04:05 +0100 (2026-01-02T15:04:05+01:00)",
		Render(dt, 0, false))

	dt.Zone = -5
	assert.Equal(t, "2.1.2026 15:04:05 -0500 (2026-01-02T15:04:05-05:00)",
		Render(dt, 0, false))
}

func TestRenderArrayShape(t *testing.T) {
	arr := Array{Int(1), String("x"), Bool(true)}

	// Boolean elements print with no type label.
	want := "(\n" +
		"    [0] int = 1\n" +
		"    [1] string = \"x\"\n" +
		"    [2] = True\n" +
		")"
	assert.Equal(t, want, Render(arr, 0, false))
}

func TestRenderStructOrder(t *testing.T) {
	st := Struct{
		{Key: "zebra", Value: Int(1)},
		{Key: "alpha", Value: String("x")},
	}

	unsorted := Render(st, 0, false)
	assert.Equal(t, "{\n    int zebra = 1\n    string alpha = \"x\"\n}", unsorted)

	sorted := Render(st, 0, true)
	assert.Equal(t, "{\n    string alpha = \"x\"\n    int zebra = 1\n}", sorted)

	// Sorting is a display option only; the struct itself is unchanged.
	assert.Equal(t, "zebra", st[0].Key)
}

func TestRenderNested(t *testing.T) {
	v := Struct{
		{Key: "rows", Value: Array{
			Struct{{Key: "id", Value: Int(1)}},
		}},
	}
	want := "{\n" +
		"    array rows = (\n" +
		"        [0] struct = {\n" +
		"            int id = 1\n" +
		"        }\n" +
		"    )\n" +
		"}"
	assert.Equal(t, want, Render(v, 0, false))
}

func TestRenderDeterministic(t *testing.T) {
	v := Struct{
		{Key: "b", Value: Array{Int(1), Nil{}}},
		{Key: "a", Value: Float(0.5)},
	}
	first := Render(v, 0, true)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Render(v, 0, true))
	}
}

type alienValue struct{}

func (alienValue) value() {}

func TestRenderUnknownNeverPanics(t *testing.T) {
	out := Render(alienValue{}, 0, false)
	assert.Contains(t, out, "unknown type")
	assert.NotEmpty(t, out)
}

func TestRenderResultPrefix(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, Int(5), false)
	assert.Equal(t, "result = int 5\n", buf.String())

	buf.Reset()
	RenderResult(&buf, Bool(true), false)
	assert.Equal(t, "result = True\n", buf.String())

	buf.Reset()
	RenderResult(&buf, Array{Int(1)}, false)
	assert.Equal(t, "result = array (\n    [0] int = 1\n)\n", buf.String())
}

func TestLiteral(t *testing.T) {
	v := Struct{
		{Key: "a", Value: Array{Int(1), String("x")}},
		{Key: "ok", Value: Bool(true)},
	}
	assert.Equal(t, `{"a": [1, "x"], "ok": True}`, Literal(v))
}

func TestRenderCycleDiagnostic(t *testing.T) {
	arr := make(Array, 1)
	arr[0] = arr
	assert.Equal(t, "(\n    [0] array = <cycle>\n)", Render(arr, 0, false))

	st := make(Struct, 1)
	st[0] = Member{Key: "self", Value: st}
	assert.Contains(t, Render(st, 0, false), "<cycle>")

	// Indirect cycles terminate too.
	outer := make(Array, 1)
	outer[0] = Struct{{Key: "back", Value: outer}}
	assert.Contains(t, Render(outer, 0, false), "<cycle>")

	assert.Equal(t, "[<cycle>]", Literal(arr))
	assert.Equal(t, `{"self": <cycle>}`, Literal(st))
}

func TestRenderSharedContainerIsNotACycle(t *testing.T) {
	inner := Array{Int(1)}
	out := Render(Array{inner, inner}, 0, false)
	assert.NotContains(t, out, "<cycle>")
	assert.Equal(t, 2, strings.Count(out, "[0] int = 1"))
}
