package analysis

import (
	"math"

	"netan/pkg/device"
	"netan/pkg/result"
)

// Local truncation error estimates per reactive device. The integrator
// runs at a fixed tick, so these only report; nothing adapts the step.

func capacitorLTE(dev device.Device, res *result.Store, method device.IntegrateMethod, tick float64) float64 {
	if method == device.Trapezoidal {
		volDeriv := res.DeviceVoltageDerivative(dev, 3, 1)
		return -tick * tick * tick * volDeriv / 12
	}
	volDeriv := res.DeviceVoltageDerivative(dev, 2, 1)
	return -tick * tick * volDeriv / 2
}

func inductorLTE(dev device.Device, res *result.Store, method device.IntegrateMethod, tick float64) float64 {
	if method == device.Trapezoidal {
		curDeriv := res.DeviceCurrentDerivative(dev, 3, 1)
		return -tick * tick * tick * curDeriv / 12
	}
	curDeriv := res.DeviceCurrentDerivative(dev, 2, 1)
	return -tick * tick * curDeriv / 2
}

// MaxLTE reports the largest local truncation error estimate over all
// reactive devices at the most recent tick.
func (t *Transient) MaxLTE() float64 {
	method := t.integrateMethod()
	lteValue := 0.0
	for _, dev := range t.ckt.Devices() {
		var devLTE float64
		switch dev.Type {
		case device.Capacitor:
			devLTE = capacitorLTE(dev, t.res, method, t.param.SimTick)
		case device.Inductor:
			devLTE = inductorLTE(dev, t.res, method, t.param.SimTick)
		default:
			continue
		}
		lteValue = math.Max(lteValue, math.Abs(devLTE))
	}
	return lteValue
}
