package util

import "netan/pkg/device"

// bdf holds backward differentiation formula coefficients. Only the
// first two orders are exercised by the fixed-tick integrator; the
// table keeps the standard values for reference.
type bdf struct {
	coefficients []float64
	beta         float64
}

var bdfCoefficients = [2]bdf{
	{[]float64{1.0}, 1.0},
	{[]float64{4.0 / 3.0, -1.0 / 3.0}, 2.0 / 3.0},
}

// StencilScale returns the multiplier applied to a reactive element
// value in the G/C conductance stencil for the given method:
// 1/dt for backward Euler, 2/dt for trapezoidal and 1.5/dt for the
// 2nd order BDF (1/(beta*dt) with beta = 2/3).
func StencilScale(method device.IntegrateMethod, dt float64) float64 {
	switch method {
	case device.Trapezoidal:
		return 2.0 / dt
	case device.Gear2:
		return 1.0 / (bdfCoefficients[1].beta * dt)
	default:
		return 1.0 / (bdfCoefficients[0].beta * dt)
	}
}
