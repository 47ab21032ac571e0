package stamp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"netan/pkg/circuit"
	"netan/pkg/device"
	"netan/pkg/result"
	"netan/pkg/util"
)

// Stamper adds per-device contributions to the MNA matrices G and C
// and the excitation vector b. It borrows the circuit and the result
// history immutably for one formulation pass; any stamp whose row or
// column lands on the ground node is skipped, which keeps the system
// square and non-singular.
type Stamper struct {
	ckt     *circuit.Circuit
	res     *result.Store
	simTick float64
	sDomain bool
}

func New(ckt *circuit.Circuit, res *result.Store, simTick float64) *Stamper {
	return &Stamper{ckt: ckt, res: res, simTick: simTick}
}

// NewSDomain builds a stamper producing the s-domain matrices used by
// moment matching: reactive values are scaled by the circuit's scaling
// factor and sources become unit stimuli.
func NewSDomain(ckt *circuit.Circuit, res *result.Store) *Stamper {
	return &Stamper{ckt: ckt, res: res, sDomain: true}
}

// add accumulates into a matrix entry unless either index is omitted.
func add(m *mat.Dense, i, j int, value float64) {
	if i < 0 || j < 0 {
		return
	}
	m.Set(i, j, m.At(i, j)+value)
}

func addB(b *mat.VecDense, i int, value float64) {
	if i < 0 {
		return
	}
	b.SetVec(i, b.AtVec(i)+value)
}

// Stamp runs one full pass over all devices.
func (s *Stamper) Stamp(G, C *mat.Dense, b *mat.VecDense, method device.IntegrateMethod) error {
	for _, dev := range s.ckt.Devices() {
		if err := s.stampDevice(G, C, b, dev, method); err != nil {
			return fmt.Errorf("stamping device %s: %v", dev.Name, err)
		}
	}
	return nil
}

// UpdateB re-stamps only the excitation vector. Valid while G, C and
// the integration method are unchanged.
func (s *Stamper) UpdateB(b *mat.VecDense, method device.IntegrateMethod) {
	b.Zero()
	for _, dev := range s.ckt.Devices() {
		switch dev.Type {
		case device.Capacitor:
			s.updatebCapacitor(b, dev, method)
		case device.Inductor:
			s.updatebInductor(b, dev, method)
		case device.VoltageSource:
			s.updatebVoltageSource(b, dev)
		case device.CurrentSource:
			s.updatebCurrentSource(b, dev)
		}
	}
}

func (s *Stamper) stampDevice(G, C *mat.Dense, b *mat.VecDense, dev device.Device, method device.IntegrateMethod) error {
	switch dev.Type {
	case device.Resistor:
		s.stampResistor(G, dev)
	case device.Capacitor:
		s.stampCapacitor(C, b, dev, method)
	case device.Inductor:
		s.stampInductor(G, C, b, dev, method)
	case device.VoltageSource:
		s.stampVoltageSource(G, b, dev)
	case device.CurrentSource:
		s.updatebCurrentSource(b, dev)
	case device.VCVS:
		if s.sDomain {
			return fmt.Errorf("controlled sources are not supported in the s-domain")
		}
		s.stampVCVS(G, dev)
	case device.VCCS:
		if s.sDomain {
			return fmt.Errorf("controlled sources are not supported in the s-domain")
		}
		s.stampVCCS(G, dev)
	case device.CCVS:
		if s.sDomain {
			return fmt.Errorf("controlled sources are not supported in the s-domain")
		}
		if dev.SampleDevice == device.InvalidID {
			return fmt.Errorf("sample branch unresolved")
		}
		s.stampCCVS(G, dev)
	case device.CCCS:
		if s.sDomain {
			return fmt.Errorf("controlled sources are not supported in the s-domain")
		}
		if dev.SampleDevice == device.InvalidID {
			return fmt.Errorf("sample branch unresolved")
		}
		s.stampCCCS(G, dev)
	default:
		return fmt.Errorf("unknown device type %v", dev.Type)
	}
	return nil
}

func (s *Stamper) stampResistor(G *mat.Dense, dev device.Device) {
	g := 1.0 / dev.Value
	im := s.res.Map()
	posRow := im.NodeRow(dev.PosNode)
	negRow := im.NodeRow(dev.NegNode)
	add(G, posRow, posRow, g)
	add(G, negRow, negRow, g)
	add(G, posRow, negRow, -g)
	add(G, negRow, posRow, -g)
}

// stampCapacitor places the 2x2 conductance stencil into the C matrix
// and, in the time domain, the method's history terms into b.
func (s *Stamper) stampCapacitor(C *mat.Dense, b *mat.VecDense, dev device.Device, method device.IntegrateMethod) {
	var stampValue float64
	if s.sDomain {
		stampValue = dev.Value * s.ckt.ScalingFactor()
	} else {
		stampValue = dev.Value * util.StencilScale(method, s.simTick)
	}
	im := s.res.Map()
	posRow := im.NodeRow(dev.PosNode)
	negRow := im.NodeRow(dev.NegNode)
	add(C, posRow, posRow, stampValue)
	add(C, negRow, negRow, stampValue)
	add(C, posRow, negRow, -stampValue)
	add(C, negRow, posRow, -stampValue)
	if !s.sDomain {
		s.updatebCapacitor(b, dev, method)
	}
}

func (s *Stamper) updatebCapacitor(b *mat.VecDense, dev device.Device, method device.IntegrateMethod) {
	baseValue := dev.Value / s.simTick
	diff1 := s.res.NodeVoltageBackstep(dev.PosNode, 1) - s.res.NodeVoltageBackstep(dev.NegNode, 1)
	var bValue float64
	switch method {
	case device.Trapezoidal:
		dVdt := s.res.DeviceVoltageDerivative(dev, 1, 1)
		bValue = 2*baseValue*diff1 + dev.Value*dVdt
	case device.Gear2:
		diff2 := s.res.NodeVoltageBackstep(dev.PosNode, 2) - s.res.NodeVoltageBackstep(dev.NegNode, 2)
		bValue = baseValue * (2*diff1 - 0.5*diff2)
	default:
		bValue = baseValue * diff1
	}
	im := s.res.Map()
	addB(b, im.NodeRow(dev.PosNode), bValue)
	addB(b, im.NodeRow(dev.NegNode), -bValue)
}

// stampInductor needs a branch row: +-1 couplings between the node
// rows and the branch row, and the method-scaled -L/h on the branch
// diagonal. In the s-domain the couplings are constant and go into G
// while the diagonal carries -L*scale in C.
func (s *Stamper) stampInductor(G, C *mat.Dense, b *mat.VecDense, dev device.Device, method device.IntegrateMethod) {
	im := s.res.Map()
	posRow := im.NodeRow(dev.PosNode)
	negRow := im.NodeRow(dev.NegNode)
	devRow := im.DevRow(dev.ID)
	coupling := C
	if s.sDomain {
		coupling = G
	}
	add(coupling, posRow, devRow, 1)
	add(coupling, devRow, posRow, 1)
	add(coupling, negRow, devRow, -1)
	add(coupling, devRow, negRow, -1)
	var stampValue float64
	if s.sDomain {
		stampValue = dev.Value * s.ckt.ScalingFactor()
	} else {
		stampValue = dev.Value * util.StencilScale(method, s.simTick)
	}
	add(C, devRow, devRow, -stampValue)
	if !s.sDomain {
		s.updatebInductor(b, dev, method)
	}
}

func (s *Stamper) updatebInductor(b *mat.VecDense, dev device.Device, method device.IntegrateMethod) {
	baseValue := dev.Value / s.simTick
	current1 := s.res.DeviceCurrentBackstep(dev.ID, 1)
	var bValue float64
	switch method {
	case device.Trapezoidal:
		dIdt := s.res.DeviceCurrentDerivative(dev, 1, 1)
		bValue = -2*baseValue*current1 - dev.Value*dIdt
	case device.Gear2:
		current2 := s.res.DeviceCurrentBackstep(dev.ID, 2)
		bValue = -baseValue * (2*current1 - 0.5*current2)
	default:
		bValue = -baseValue * current1
	}
	addB(b, s.res.Map().DevRow(dev.ID), bValue)
}

func (s *Stamper) stampVoltageSource(G *mat.Dense, b *mat.VecDense, dev device.Device) {
	im := s.res.Map()
	posRow := im.NodeRow(dev.PosNode)
	negRow := im.NodeRow(dev.NegNode)
	devRow := im.DevRow(dev.ID)
	add(G, posRow, devRow, 1)
	add(G, devRow, posRow, 1)
	add(G, negRow, devRow, -1)
	add(G, devRow, negRow, -1)
	s.updatebVoltageSource(b, dev)
}

func (s *Stamper) updatebVoltageSource(b *mat.VecDense, dev device.Device) {
	value := s.sourceValue(dev)
	addB(b, s.res.Map().DevRow(dev.ID), value)
}

func (s *Stamper) updatebCurrentSource(b *mat.VecDense, dev device.Device) {
	value := s.sourceValue(dev)
	im := s.res.Map()
	addB(b, im.NodeRow(dev.PosNode), -value)
	addB(b, im.NodeRow(dev.NegNode), value)
}

// sourceValue evaluates an independent source: the PWL table at the
// current accumulated time, the scalar value otherwise. The s-domain
// uses a scaled unit stimulus for moment matching.
func (s *Stamper) sourceValue(dev device.Device) float64 {
	if s.sDomain {
		return 1 * s.ckt.ScalingFactor()
	}
	if dev.IsPWL {
		return s.ckt.PWL(dev).ValueAtTime(s.res.CurrentTime())
	}
	return dev.Value
}

func (s *Stamper) stampVCVS(G *mat.Dense, dev device.Device) {
	im := s.res.Map()
	posRow := im.NodeRow(dev.PosNode)
	negRow := im.NodeRow(dev.NegNode)
	devRow := im.DevRow(dev.ID)
	posSampleRow := im.NodeRow(dev.PosSampleNode)
	negSampleRow := im.NodeRow(dev.NegSampleNode)
	add(G, posRow, devRow, 1)
	add(G, devRow, posRow, 1)
	add(G, negRow, devRow, -1)
	add(G, devRow, negRow, -1)
	add(G, devRow, posSampleRow, -dev.Value)
	add(G, devRow, negSampleRow, dev.Value)
}

func (s *Stamper) stampVCCS(G *mat.Dense, dev device.Device) {
	im := s.res.Map()
	posRow := im.NodeRow(dev.PosNode)
	negRow := im.NodeRow(dev.NegNode)
	posSampleRow := im.NodeRow(dev.PosSampleNode)
	negSampleRow := im.NodeRow(dev.NegSampleNode)
	add(G, posRow, posSampleRow, dev.Value)
	add(G, posRow, negSampleRow, -dev.Value)
	add(G, negRow, posSampleRow, -dev.Value)
	add(G, negRow, negSampleRow, dev.Value)
}

// sampleGain flips the gain when the sample branch is oriented against
// the sampling node pair.
func (s *Stamper) sampleGain(dev device.Device) float64 {
	sampleDev := s.ckt.Device(dev.SampleDevice)
	if sampleDev.PosNode == dev.NegSampleNode {
		return -dev.Value
	}
	return dev.Value
}

// stampSampleBranch turns the sampled edge into a current-measuring
// branch: +-1 couplings between the sample nodes and the sample row.
func (s *Stamper) stampSampleBranch(G *mat.Dense, dev device.Device) {
	im := s.res.Map()
	sampleRow := im.DevRow(dev.SampleDevice)
	posSampleRow := im.NodeRow(dev.PosSampleNode)
	negSampleRow := im.NodeRow(dev.NegSampleNode)
	add(G, sampleRow, posSampleRow, 1)
	add(G, posSampleRow, sampleRow, 1)
	add(G, sampleRow, negSampleRow, -1)
	add(G, negSampleRow, sampleRow, -1)
}

func (s *Stamper) stampCCVS(G *mat.Dense, dev device.Device) {
	im := s.res.Map()
	posRow := im.NodeRow(dev.PosNode)
	negRow := im.NodeRow(dev.NegNode)
	devRow := im.DevRow(dev.ID)
	sampleRow := im.DevRow(dev.SampleDevice)
	s.stampSampleBranch(G, dev)
	add(G, posRow, devRow, 1)
	add(G, devRow, posRow, 1)
	add(G, negRow, devRow, -1)
	add(G, devRow, negRow, -1)
	add(G, devRow, sampleRow, s.sampleGain(dev))
}

func (s *Stamper) stampCCCS(G *mat.Dense, dev device.Device) {
	im := s.res.Map()
	posRow := im.NodeRow(dev.PosNode)
	negRow := im.NodeRow(dev.NegNode)
	sampleRow := im.DevRow(dev.SampleDevice)
	s.stampSampleBranch(G, dev)
	add(G, posRow, sampleRow, s.sampleGain(dev))
	add(G, negRow, sampleRow, -s.sampleGain(dev))
}
