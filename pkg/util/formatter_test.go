package util

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"netan/pkg/device"
)

func TestFormatValueFactor(t *testing.T) {
	chk.PrintTitle("format value factor")

	cases := []struct {
		value float64
		unit  string
		want  string
	}{
		{0, "s", "0.000 s"},
		{2.5, "V", "2.500 V"},
		{1.5e-3, "s", "1.500 ms"},
		{12e-6, "s", "12.000 us"},
		{3e-9, "A", "3.000 nA"},
		{7e-12, "s", "7.000 ps"},
	}
	for _, c := range cases {
		if got := FormatValueFactor(c.value, c.unit); got != c.want {
			t.Fatalf("FormatValueFactor(%g, %q) = %q, want %q", c.value, c.unit, got, c.want)
		}
	}
}

func TestStencilScale(t *testing.T) {
	chk.PrintTitle("integrator stencil scale")

	dt := 1e-6
	chk.Scalar(t, "euler", 1e-9, StencilScale(device.BackwardEuler, dt), 1e6)
	chk.Scalar(t, "trap", 1e-9, StencilScale(device.Trapezoidal, dt), 2e6)
	chk.Scalar(t, "gear2", 1e-9, StencilScale(device.Gear2, dt), 1.5e6)
}
