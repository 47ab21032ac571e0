package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"netan/pkg/circuit"
	"netan/pkg/device"
	"netan/pkg/netlist"
	"netan/pkg/numeric"
	"netan/pkg/result"
	"netan/pkg/stamp"
)

// PoleZero computes a rational approximation of the transfer function
// from the stimulus to the output node by asymptotic waveform
// evaluation: 2q moments from the s-domain matrices, a Pade fit for
// the denominator/numerator and a residue solve over the poles.
//
// Stamping happens with the circuit's scaling factor applied to the
// reactive elements; poles and zeros are de-scaled back to physical
// units before they are reported, and the residues come out in
// physical units without rescaling.
type PoleZero struct {
	ckt   *circuit.Circuit
	param netlist.AnalysisParam
	res   *result.Store

	moments    []float64
	denomCoeff []float64
	numerCoeff []float64
	poles      []complex128
	zeros      []complex128
	residues   []complex128
}

func NewPoleZero(ckt *circuit.Circuit, param netlist.AnalysisParam) *PoleZero {
	return &PoleZero{
		ckt:   ckt,
		param: param,
		res:   result.NewStore(ckt, param.Name),
	}
}

func (p *PoleZero) Result() *result.Store { return p.res }

// Moments returns the raw (scaled) output moments m_0..m_{2q-1}.
func (p *PoleZero) Moments() []float64 { return p.moments }

// DenominatorCoeff returns the monic denominator in ascending powers.
func (p *PoleZero) DenominatorCoeff() []float64 { return p.denomCoeff }
func (p *PoleZero) NumeratorCoeff() []float64   { return p.numerCoeff }

func (p *PoleZero) Poles() []complex128    { return p.poles }
func (p *PoleZero) Zeros() []complex128    { return p.zeros }
func (p *PoleZero) Residues() []complex128 { return p.residues }

func (p *PoleZero) check() (outRow int, err error) {
	outNode, ok := p.ckt.FindNodeByName(p.param.OutNode)
	if !ok {
		return 0, fmt.Errorf("output node %q does not exist", p.param.OutNode)
	}
	if _, ok := p.ckt.FindDeviceByName(p.param.InDev); !ok {
		return 0, fmt.Errorf("input device %q does not exist", p.param.InDev)
	}
	outRow = p.res.Map().NodeRow(outNode.ID)
	if outRow == result.InvalidRow {
		return 0, fmt.Errorf("output node %q is the ground node", p.param.OutNode)
	}
	if p.param.Order < 1 {
		return 0, fmt.Errorf("approximation order must be at least 1")
	}
	return outRow, nil
}

// calcMoments factors G once and iterates V_0 = G^-1 E,
// V_k = G^-1 (-C V_{k-1}), collecting the output row of each vector.
func (p *PoleZero) calcMoments(G, C *mat.Dense, E *mat.VecDense, outRow, count int) ([]float64, error) {
	dim := p.res.Dimension()
	var lu mat.LU
	lu.Factorize(G)
	vPrev := mat.NewVecDense(dim, nil)
	if err := lu.SolveVecTo(vPrev, false, E); err != nil {
		return nil, fmt.Errorf("G factorization is singular: %v", err)
	}
	moments := make([]float64, 0, count)
	moments = append(moments, vPrev.AtVec(outRow))
	rhs := mat.NewVecDense(dim, nil)
	for k := 1; k < count; k++ {
		rhs.MulVec(C, vPrev)
		rhs.ScaleVec(-1, rhs)
		v := mat.NewVecDense(dim, nil)
		if err := lu.SolveVecTo(v, false, rhs); err != nil {
			return nil, fmt.Errorf("moment %d solve failed: %v", k, err)
		}
		moments = append(moments, v.AtVec(outRow))
		vPrev = v
	}
	return moments, nil
}

// denominatorCoeff solves the q x q Hankel system H b = -v with
// H[i][j] = m_{i+j} and v[i] = m_{i+q}, returning the monic
// denominator [b_0 .. b_{q-1}, 1] in ascending powers.
func denominatorCoeff(moments []float64, order int) ([]float64, error) {
	h := mat.NewDense(order, order, nil)
	v := mat.NewVecDense(order, nil)
	for i := 0; i < order; i++ {
		for j := 0; j < order; j++ {
			h.Set(i, j, moments[i+j])
		}
		v.SetVec(i, -moments[i+order])
	}
	var lu mat.LU
	lu.Factorize(h)
	b := mat.NewVecDense(order, nil)
	if err := lu.SolveVecTo(b, false, v); err != nil {
		return nil, fmt.Errorf("moment Hankel system is singular, try a lower order: %v", err)
	}
	coeff := make([]float64, 0, order+1)
	for i := 0; i < order; i++ {
		coeff = append(coeff, b.AtVec(i))
	}
	coeff = append(coeff, 1.0)
	return coeff, nil
}

// numeratorCoeff convolves the moments with the denominator:
// a_i = sum_{j<=i} m_{i-j} * b_j for i = 0..q-1.
func numeratorCoeff(moments, denomCoeff []float64, order int) []float64 {
	coeff := make([]float64, order)
	for i := 0; i < order; i++ {
		a := 0.0
		for j := 0; j <= i; j++ {
			a += moments[i-j] * denomCoeff[j]
		}
		coeff[i] = a
	}
	return coeff
}

// calcResidues solves P r = -m over the poles with
// P[i][j] = p_i^-(j+1).
func calcResidues(poles []complex128, moments []float64) ([]complex128, error) {
	dim := len(poles)
	if dim == 0 {
		return nil, nil
	}
	P := make([][]complex128, dim)
	rhs := make([]complex128, dim)
	for i := 0; i < dim; i++ {
		P[i] = make([]complex128, dim)
		inv := 1 / poles[i]
		power := complex(1, 0)
		for j := 0; j < dim; j++ {
			power *= inv
			P[i][j] = power
		}
		rhs[i] = complex(-moments[i], 0)
	}
	return numeric.SolveComplex(P, rhs)
}

func scaleRoots(roots []complex128, scale float64) []complex128 {
	scaled := make([]complex128, len(roots))
	for i, r := range roots {
		scaled[i] = r * complex(scale, 0)
	}
	return scaled
}

func (p *PoleZero) Run() error {
	outRow, err := p.check()
	if err != nil {
		return err
	}
	dim := p.res.Dimension()
	G := mat.NewDense(dim, dim, nil)
	C := mat.NewDense(dim, dim, nil)
	E := mat.NewVecDense(dim, nil)
	stamper := stamp.NewSDomain(p.ckt, p.res)
	if err := stamper.Stamp(G, C, E, device.NoMethod); err != nil {
		return err
	}

	order := p.param.Order
	p.moments, err = p.calcMoments(G, C, E, outRow, 2*order)
	if err != nil {
		return err
	}
	p.denomCoeff, err = denominatorCoeff(p.moments, order)
	if err != nil {
		return err
	}
	p.numerCoeff = numeratorCoeff(p.moments, p.denomCoeff, order)

	poles, err := numeric.PolyRoots(p.denomCoeff)
	if err != nil {
		return fmt.Errorf("denominator roots: %v", err)
	}
	zeros, err := numeric.PolyRoots(p.numerCoeff)
	if err != nil {
		return fmt.Errorf("numerator roots: %v", err)
	}
	residues, err := calcResidues(poles, p.moments)
	if err != nil {
		return err
	}

	// De-scale to physical units. Poles and zeros move by the factor
	// (the scaled frequency variable is s/scale); the residues already
	// come out physical because the stimulus carries the same factor.
	scale := p.ckt.ScalingFactor()
	p.poles = scaleRoots(poles, scale)
	p.zeros = scaleRoots(zeros, scale)
	p.residues = residues
	return nil
}
