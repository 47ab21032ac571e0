package numeric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"netan/internal/consts"
)

// Func is one scalar equation of the system f(x) = 0.
type Func func(x []float64) float64

// RootSolver is a Newton-Raphson iterator over N registered scalar
// functions. Derivative functions are optional; when absent the
// Jacobian is built with one-sided finite differences. Registration
// order of the N*N derivatives is row major: dF_i/dx_j at i*N+j.
type RootSolver struct {
	functions   []Func
	derivatives []Func
	x           []float64
	xTol        float64
	maxIter     int
	iterCount   int
}

func NewRootSolver() *RootSolver {
	return &RootSolver{
		xTol:    consts.NewtonXTol,
		maxIter: consts.NewtonMaxIter,
	}
}

func (r *RootSolver) AddFunction(f Func) { r.functions = append(r.functions, f) }

func (r *RootSolver) AddDerivativeFunction(f Func) { r.derivatives = append(r.derivatives, f) }

func (r *RootSolver) SetInitX(x []float64) { r.x = append([]float64(nil), x...) }

func (r *RootSolver) SetXTol(tol float64) { r.xTol = tol }

func (r *RootSolver) SetMaxIter(n int) { r.maxIter = n }

func (r *RootSolver) IterCount() int { return r.iterCount }

// Solution returns the current iterate; after a failed run this is the
// last iterate reached.
func (r *RootSolver) Solution() []float64 {
	return append([]float64(nil), r.x...)
}

func (r *RootSolver) check() error {
	n := len(r.functions)
	if len(r.derivatives) != 0 && len(r.derivatives) != n*n {
		return fmt.Errorf("incorrect number of derivative functions, functions have %d, derivatives have %d",
			n, len(r.derivatives))
	}
	if n != len(r.x) {
		return fmt.Errorf("incorrect number of functions and variables, functions have %d, variables have %d",
			n, len(r.x))
	}
	return nil
}

func (r *RootSolver) jacobian(jac *mat.Dense) {
	n := len(r.functions)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if len(r.derivatives) > 0 {
				jac.Set(i, j, r.derivatives[i*n+j](r.x))
				continue
			}
			jac.Set(i, j, r.numericalDerivative(i, j))
		}
	}
}

func (r *RootSolver) numericalDerivative(funcIndex, varIndex int) float64 {
	h := consts.NewtonFDStep
	xCP := append([]float64(nil), r.x...)
	xCP[varIndex] += h
	f := r.functions[funcIndex]
	return (f(xCP) - f(r.x)) / h
}

// Solve iterates x <- x - J^-1 f until every |delta_i| <= xTol*|x_i|
// or the iteration cap is hit.
func (r *RootSolver) Solve() error {
	if err := r.check(); err != nil {
		return err
	}
	n := len(r.functions)
	jac := mat.NewDense(n, n, nil)
	f := mat.NewVecDense(n, nil)
	d := mat.NewVecDense(n, nil)
	var lu mat.LU

	r.iterCount = 0
	for {
		r.jacobian(jac)
		for i := 0; i < n; i++ {
			f.SetVec(i, r.functions[i](r.x))
		}
		lu.Factorize(jac)
		if err := lu.SolveVecTo(d, false, f); err != nil {
			return fmt.Errorf("jacobian solve failed: %v", err)
		}
		converged := true
		for i := 0; i < n; i++ {
			r.x[i] -= d.AtVec(i)
			if math.Abs(d.AtVec(i)) > math.Abs(r.x[i])*r.xTol {
				converged = false
			}
		}
		if converged {
			return nil
		}
		r.iterCount++
		if r.iterCount > r.maxIter {
			return fmt.Errorf("no convergence in %d iterations", r.maxIter)
		}
	}
}
