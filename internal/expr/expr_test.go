package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	cases := []struct {
		src  string
		vars Vars
		want float64
	}{
		{"x", Vars{X: 42}, 42},
		{"x_high * 256 + x_low", Vars{XHigh: 0x12, XLow: 0x34}, 0x1234},
		{"(x - 32) * 5 / 9", Vars{X: 212}, 100},
		{"y + 1", Vars{Y: 7}, 8},
		{"-x + 10", Vars{X: 4}, 6},
		{"x * (y + 2)", Vars{X: 3, Y: 1}, 9},
		{"0.1 * x", Vars{X: 100}, 10},
	}
	for _, c := range cases {
		e, err := Compile(c.src)
		require.NoError(t, err, c.src)
		got, err := e.Eval(c.vars)
		require.NoError(t, err, c.src)
		assert.InDelta(t, c.want, got, 1e-9, c.src)
	}
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{"", "x +", "foo", "x $ y", "(x", "1..2"} {
		e, err := Compile(src)
		if err != nil {
			continue
		}
		// Structural errors may only surface at evaluation time.
		_, err = e.Eval(Vars{})
		assert.Error(t, err, src)
	}
}

func TestDivisionByZero(t *testing.T) {
	e, err := Compile("x / y")
	require.NoError(t, err)
	_, err = e.Eval(Vars{X: 1, Y: 0})
	assert.Error(t, err)
}
