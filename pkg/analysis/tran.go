package analysis

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"netan/pkg/circuit"
	"netan/pkg/device"
	"netan/pkg/matrix"
	"netan/pkg/netlist"
	"netan/pkg/result"
	"netan/pkg/stamp"
)

// Transient steps the MNA system at a fixed tick. Each loop iteration
// is update/formulate -> solve -> append; the system is re-formulated
// and re-factored only when the effective integration method changes,
// otherwise just the excitation vector is re-stamped.
type Transient struct {
	ckt   *circuit.Circuit
	param netlist.AnalysisParam
	res   *result.Store

	dim     int
	G, C, A *mat.Dense
	b       *mat.VecDense
	sys     *matrix.CircuitMatrix
	stamper *stamp.Stamper

	prevMethod  device.IntegrateMethod
	needRebuild bool
	debugW      io.Writer

	termVoltages map[int]float64
	termCurrents map[int]float64
}

func NewTransient(ckt *circuit.Circuit, param netlist.AnalysisParam) *Transient {
	if param.Method == device.NoMethod {
		param.Method = device.Gear2
	}
	return &Transient{
		ckt:          ckt,
		param:        param,
		res:          result.NewStore(ckt, param.Name),
		termVoltages: make(map[int]float64),
		termCurrents: make(map[int]float64),
	}
}

func (t *Transient) Result() *result.Store { return t.res }

// SetDebug makes the engine dump the stamped equations after every
// re-formulation.
func (t *Transient) SetDebug(w io.Writer) { t.debugW = w }

// TerminateOnNodeVoltage adds a termination condition: the run ends
// once the node voltage crosses the given value between two ticks.
// Iterative callers (delay calculation) use this instead of simEnd.
func (t *Transient) TerminateOnNodeVoltage(nodeID int, value float64) {
	t.termVoltages[nodeID] = value
}

func (t *Transient) TerminateOnDeviceCurrent(devID int, value float64) {
	t.termCurrents[devID] = value
}

// integrateMethod is the effective method of the next step: trapezoidal
// and Gear-2 need two prior samples and bootstrap with backward Euler.
func (t *Transient) integrateMethod() device.IntegrateMethod {
	method := t.param.Method
	switch method {
	case device.BackwardEuler:
		return device.BackwardEuler
	case device.Gear2, device.Trapezoidal:
		if t.res.Size() < 2 {
			return device.BackwardEuler
		}
		return method
	}
	return device.Gear2
}

func (t *Transient) initData() error {
	t.dim = t.res.Dimension()
	if t.dim == 0 {
		return fmt.Errorf("circuit has no unknowns to solve")
	}
	if t.param.SimTick <= 0 || t.param.SimTime <= 0 {
		return fmt.Errorf("transient analysis %q needs positive simTick and simEnd", t.param.Name)
	}
	var err error
	t.sys, err = matrix.NewMatrix(t.dim)
	if err != nil {
		return err
	}
	t.G = mat.NewDense(t.dim, t.dim, nil)
	t.C = mat.NewDense(t.dim, t.dim, nil)
	t.A = mat.NewDense(t.dim, t.dim, nil)
	t.b = mat.NewVecDense(t.dim, nil)
	t.stamper = stamp.New(t.ckt, t.res, t.param.SimTick)
	t.prevMethod = t.integrateMethod()
	return nil
}

// formulateEquation does the full stamping pass, assembles A = G + C
// and caches its factorization.
func (t *Transient) formulateEquation() error {
	t.G.Zero()
	t.C.Zero()
	t.b.Zero()
	method := t.integrateMethod()
	if err := t.stamper.Stamp(t.G, t.C, t.b, method); err != nil {
		return err
	}
	t.A.Add(t.G, t.C)
	if err := t.sys.Load(t.A); err != nil {
		return err
	}
	if t.debugW != nil {
		t.sys.PrintSystem(t.debugW)
	}
	return t.sys.Factor()
}

func (t *Transient) updateEquation() error {
	if t.needRebuild {
		return t.formulateEquation()
	}
	t.stamper.UpdateB(t.b, t.integrateMethod())
	return nil
}

func (t *Transient) solveEquation() error {
	x, err := t.sys.SolveVec(t.b)
	if err != nil {
		return err
	}
	return t.res.Append(t.res.CurrentTime()+t.param.SimTick, x)
}

func (t *Transient) checkNeedRebuild() {
	t.needRebuild = false
	if method := t.integrateMethod(); method != t.prevMethod {
		t.prevMethod = method
		t.needRebuild = true
	}
}

func (t *Transient) crossed(value1, value2, target float64) bool {
	return (value1 <= target && value2 >= target) ||
		(value1 >= target && value2 <= target)
}

// checkTerminateCondition holds once every monitored signal has crossed
// its target value between the last two ticks.
func (t *Transient) checkTerminateCondition() bool {
	if len(t.termVoltages) == 0 && len(t.termCurrents) == 0 {
		return false
	}
	if t.res.Size() < 2 {
		return false
	}
	for nodeID, target := range t.termVoltages {
		v1 := t.res.NodeVoltageBackstep(nodeID, 1)
		v2 := t.res.NodeVoltageBackstep(nodeID, 2)
		if !t.crossed(v1, v2, target) {
			return false
		}
	}
	for devID, target := range t.termCurrents {
		i1 := t.res.DeviceCurrentBackstep(devID, 1)
		i2 := t.res.DeviceCurrentBackstep(devID, 2)
		if !t.crossed(i1, i2, target) {
			return false
		}
	}
	return true
}

func (t *Transient) converged() bool {
	if t.checkTerminateCondition() {
		return true
	}
	return t.res.CurrentTime() >= t.param.SimTime
}

func (t *Transient) Run() error {
	if err := t.initData(); err != nil {
		return err
	}
	defer t.sys.Destroy()
	if err := t.formulateEquation(); err != nil {
		return err
	}
	if err := t.solveEquation(); err != nil {
		return err
	}
	for !t.converged() {
		t.checkNeedRebuild()
		if err := t.updateEquation(); err != nil {
			return err
		}
		if err := t.solveEquation(); err != nil {
			return err
		}
	}
	return nil
}
