package result

import (
	"fmt"
	"math"

	"netan/pkg/circuit"
	"netan/pkg/device"
)

type Point struct {
	Time  float64
	Value float64
}

type Waveform struct {
	Points []Point
}

func (w Waveform) IsRise() bool {
	if len(w.Points) < 2 {
		return false
	}
	return w.Points[0].Value < w.Points[len(w.Points)-1].Value
}

func (w Waveform) Range() (max, min float64) {
	max = -math.MaxFloat64
	min = math.MaxFloat64
	for _, p := range w.Points {
		max = math.Max(max, p.Value)
		min = math.Min(min, p.Value)
	}
	return max, min
}

// Store is the append-only history of solved unknown vectors. Values
// are laid out row-major by tick: len(values) == Dimension*len(ticks).
type Store struct {
	ckt    *circuit.Circuit
	name   string
	idxMap IndexMap
	ticks  []float64
	values []float64
}

func NewStore(ckt *circuit.Circuit, name string) *Store {
	return &Store{
		ckt:    ckt,
		name:   name,
		idxMap: NewIndexMap(ckt),
	}
}

func (s *Store) Name() string { return s.name }

func (s *Store) Map() IndexMap { return s.idxMap }

func (s *Store) Ticks() []float64 { return s.ticks }

func (s *Store) Size() int { return len(s.ticks) }

func (s *Store) Dimension() int { return s.idxMap.Dimension() }

func (s *Store) Circuit() *circuit.Circuit { return s.ckt }

// Append stores one solved vector. Ticks must be strictly increasing
// and x must match the system dimension.
func (s *Store) Append(tick float64, x []float64) error {
	if len(x) != s.idxMap.Dimension() {
		return fmt.Errorf("solution size %d does not match system dimension %d", len(x), s.idxMap.Dimension())
	}
	if len(s.ticks) > 0 && tick <= s.ticks[len(s.ticks)-1] {
		return fmt.Errorf("tick %g is not after %g", tick, s.ticks[len(s.ticks)-1])
	}
	s.ticks = append(s.ticks, tick)
	s.values = append(s.values, x...)
	return nil
}

// CurrentTime is the accumulated simulation time.
func (s *Store) CurrentTime() float64 {
	if len(s.ticks) == 0 {
		return 0
	}
	return s.ticks[len(s.ticks)-1]
}

// StepTime returns the time of the given step, or +max when out of range.
func (s *Store) StepTime(step int) float64 {
	if step < 0 || step >= len(s.ticks) {
		return math.MaxFloat64
	}
	return s.ticks[step]
}

// StepSize returns the tick interval k steps back; 0 is the most
// recent interval.
func (s *Store) StepSize(stepsBack int) float64 {
	if len(s.ticks) < stepsBack+2 {
		return 0
	}
	index := len(s.ticks) - 1 - stepsBack
	return s.ticks[index] - s.ticks[index-1]
}

// ValueAt is the raw solved value at an absolute forward step.
func (s *Store) ValueAt(row, step int) float64 {
	return s.values[step*s.idxMap.Dimension()+row]
}

// Backstep returns the value k steps back from the step being solved:
// k = 1 is the most recent sample, k = 2 the one before it.
// Insufficient history yields the zero initial condition.
func (s *Store) Backstep(row, k int) float64 {
	if k < 1 || len(s.ticks) < k {
		return 0
	}
	step := len(s.ticks) - k
	return s.values[step*s.idxMap.Dimension()+row]
}

// NodeVoltage returns the voltage at the given step. Ground reads 0.
// A node driven by the positive terminal of a voltage source reads the
// stamped source value instead of the solved value: ideal-source
// branches are defined, not solved, so measurements must not see
// solver round-off there.
func (s *Store) NodeVoltage(nodeID, step int) float64 {
	if s.ckt.IsGroundNode(nodeID) {
		return 0
	}
	if value, ok := s.sourceVoltageAt(nodeID, s.StepTime(step)); ok {
		return value
	}
	return s.ValueAt(s.idxMap.NodeRow(nodeID), step)
}

// NodeVoltageBackstep is NodeVoltage with relative-back indexing. The
// ideal-source override applies even before any history exists: a
// source-driven node is defined at all times, not solved.
func (s *Store) NodeVoltageBackstep(nodeID, k int) float64 {
	if s.ckt.IsGroundNode(nodeID) {
		return 0
	}
	time := 0.0
	if k >= 1 && len(s.ticks) >= k {
		time = s.ticks[len(s.ticks)-k]
	}
	if value, ok := s.sourceVoltageAt(nodeID, time); ok {
		return value
	}
	return s.Backstep(s.idxMap.NodeRow(nodeID), k)
}

func (s *Store) sourceVoltageAt(nodeID int, time float64) (float64, bool) {
	voltage := -math.MaxFloat64
	found := false
	for _, devID := range s.ckt.Node(nodeID).Connections {
		dev := s.ckt.Device(devID)
		if dev.Type != device.VoltageSource || dev.PosNode != nodeID {
			continue
		}
		value := dev.Value
		if dev.IsPWL {
			value = s.ckt.PWL(dev).ValueAtTime(time)
		}
		voltage = math.Max(voltage, value)
		found = true
	}
	return voltage, found
}

// DeviceCurrent returns the branch current at the given step. Current
// sources read their stamped value.
func (s *Store) DeviceCurrent(devID, step int) float64 {
	dev := s.ckt.Device(devID)
	if dev.Type == device.CurrentSource {
		if dev.IsPWL {
			return s.ckt.PWL(dev).ValueAtTime(s.StepTime(step))
		}
		return dev.Value
	}
	return s.ValueAt(s.idxMap.DevRow(devID), step)
}

func (s *Store) DeviceCurrentBackstep(devID, k int) float64 {
	dev := s.ckt.Device(devID)
	if dev.Type == device.CurrentSource {
		return dev.Value
	}
	return s.Backstep(s.idxMap.DevRow(devID), k)
}

// calcDerivative estimates the highest derivative of y over x by
// repeated first differences.
func calcDerivative(y, x []float64) float64 {
	derivative := append([]float64(nil), y...)
	xOffset := 0
	for len(derivative) > 1 {
		for i := 1; i < len(derivative); i++ {
			deltaY := derivative[i] - derivative[i-1]
			deltaX := x[xOffset+i] - x[xOffset+i-1]
			derivative[i-1] = deltaY / deltaX
		}
		derivative = derivative[:len(derivative)-1]
		xOffset++
	}
	return derivative[0]
}

// NodeVoltageDerivative estimates the order-th time derivative of a
// node voltage over the order+1 samples ending at backstep stepsBack
// (stepsBack = 1 ends at the most recent sample). Orders 1 to 3 are
// supported; insufficient history yields 0.
func (s *Store) NodeVoltageDerivative(nodeID, order, stepsBack int) float64 {
	return s.derivative(stepsBack, order, func(k int) float64 {
		return s.NodeVoltageBackstep(nodeID, k)
	})
}

// DeviceVoltageDerivative differentiates the voltage across a device.
func (s *Store) DeviceVoltageDerivative(dev device.Device, order, stepsBack int) float64 {
	return s.derivative(stepsBack, order, func(k int) float64 {
		return s.NodeVoltageBackstep(dev.PosNode, k) - s.NodeVoltageBackstep(dev.NegNode, k)
	})
}

func (s *Store) DeviceCurrentDerivative(dev device.Device, order, stepsBack int) float64 {
	return s.derivative(stepsBack, order, func(k int) float64 {
		return s.DeviceCurrentBackstep(dev.ID, k)
	})
}

func (s *Store) derivative(stepsBack, order int, backstep func(k int) float64) float64 {
	if stepsBack == 0 || order < 1 || order > 3 {
		return 0
	}
	if len(s.ticks) <= stepsBack+order {
		return 0
	}
	// Iterate backward so values and times end up in forward order.
	var y []float64
	for k := stepsBack + order; k >= stepsBack; k-- {
		y = append(y, backstep(k))
	}
	timeEnd := len(s.ticks) - stepsBack
	x := s.ticks[timeEnd-order : timeEnd+1]
	return calcDerivative(y, x)
}

func (s *Store) waveformData(row int) (Waveform, float64, float64) {
	max := -math.MaxFloat64
	min := math.MaxFloat64
	var wf Waveform
	dim := s.idxMap.Dimension()
	for step, tick := range s.ticks {
		value := s.values[step*dim+row]
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		max = math.Max(max, value)
		min = math.Min(min, value)
		wf.Points = append(wf.Points, Point{Time: tick, Value: value})
	}
	return wf, max, min
}

// NodeWaveform returns the full stored waveform of a node voltage plus
// its value range.
func (s *Store) NodeWaveform(nodeName string) (Waveform, float64, float64, error) {
	node, ok := s.ckt.FindNodeByName(nodeName)
	if !ok {
		return Waveform{}, 0, 0, fmt.Errorf("node %s not found", nodeName)
	}
	row := s.idxMap.NodeRow(node.ID)
	if row == InvalidRow {
		return Waveform{}, 0, 0, fmt.Errorf("node %s has no stored waveform", nodeName)
	}
	wf, max, min := s.waveformData(row)
	return wf, max, min, nil
}

// DeviceWaveform returns the full stored waveform of a branch current.
func (s *Store) DeviceWaveform(devName string) (Waveform, float64, float64, error) {
	dev, ok := s.ckt.FindDeviceByName(devName)
	if !ok {
		return Waveform{}, 0, 0, fmt.Errorf("device %s not found", devName)
	}
	row := s.idxMap.DevRow(dev.ID)
	if row == InvalidRow {
		return Waveform{}, 0, 0, fmt.Errorf("device %s has no branch current", devName)
	}
	wf, max, min := s.waveformData(row)
	return wf, max, min, nil
}
