package measure

import (
	"fmt"

	"netan/pkg/device"
	"netan/pkg/netlist"
	"netan/pkg/result"
)

// Result is one evaluated measurement. Value is the time between the
// trigger and target level crossings; a missed crossing leaves the
// sentinel 0 with Err set.
type Result struct {
	Label string
	Value float64
	Err   error
}

// interpolateTime linearly interpolates the time at which the segment
// (x1,y1)-(x2,y2) crosses the given level.
func interpolateTime(x1, y1, x2, y2, level float64) float64 {
	k := (y2 - y1) / (x2 - x1)
	b := y1 - k*x1
	return (level - b) / k
}

func signalAt(res *result.Store, rtype device.ResultType, point string, step int) (value, next float64, err error) {
	ckt := res.Circuit()
	if rtype == device.Voltage {
		node, ok := ckt.FindNodeByName(point)
		if !ok {
			return 0, 0, fmt.Errorf("node %s not found", point)
		}
		return res.NodeVoltage(node.ID, step), res.NodeVoltage(node.ID, step+1), nil
	}
	dev, ok := ckt.FindDeviceByName(point)
	if !ok {
		return 0, 0, fmt.Errorf("device %s not found", point)
	}
	return res.DeviceCurrent(dev.ID, step), res.DeviceCurrent(dev.ID, step+1), nil
}

func crosses(value, next, level float64) bool {
	return (value <= level && next >= level) ||
		(value >= level && next <= level)
}

// One evaluates a single measurement: scan forward from the time-delay
// gate, find the trigger crossing and the target crossing, interpolate
// both and report the difference.
func One(res *result.Store, mp netlist.MeasurePoint) Result {
	steps := res.Size()
	triggerFound := false
	targetFound := false
	var measureStart, measureEnd float64
	started := false
	firstMeasuredStep := true
	for step := 0; step < steps-1; step++ {
		if !started && res.StepTime(step) >= mp.TimeDelay {
			started = true
		}
		if !started {
			continue
		}
		if !triggerFound {
			value, next, err := signalAt(res, mp.TriggerType, mp.Trigger, step)
			if err != nil {
				return Result{Label: mp.Label, Err: err}
			}
			if crosses(value, next, mp.TriggerValue) {
				t1, t2 := res.StepTime(step), res.StepTime(step+1)
				measureStart = interpolateTime(t1, value, t2, next, mp.TriggerValue)
				triggerFound = true
			} else if firstMeasuredStep && value > mp.TriggerValue {
				// Signal already beyond the trigger level at the gate.
				measureStart = res.StepTime(step)
				triggerFound = true
			}
		}
		if !targetFound {
			value, next, err := signalAt(res, mp.TargetType, mp.Target, step)
			if err != nil {
				return Result{Label: mp.Label, Err: err}
			}
			if crosses(value, next, mp.TargetValue) {
				t1, t2 := res.StepTime(step), res.StepTime(step+1)
				measureEnd = interpolateTime(t1, value, t2, next, mp.TargetValue)
				targetFound = true
			}
		}
		if triggerFound && targetFound {
			break
		}
		firstMeasuredStep = false
	}
	if !triggerFound {
		return Result{Label: mp.Label, Err: fmt.Errorf("trigger condition never meets the required value")}
	}
	if !targetFound {
		return Result{Label: mp.Label, Err: fmt.Errorf("target value never met")}
	}
	return Result{Label: mp.Label, Value: measureEnd - measureStart}
}

// Run evaluates every measurement registered against the result's
// analysis name.
func Run(res *result.Store, points []netlist.MeasurePoint) []Result {
	var results []Result
	for _, mp := range points {
		if mp.SimName != res.Name() {
			continue
		}
		results = append(results, One(res, mp))
	}
	return results
}
