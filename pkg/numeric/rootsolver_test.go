package numeric

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
)

// The system x1^2*x2^3 - x1*x2^3 - 1 = 0, x1^3 - x1*x2^3 - 4 = 0 has
// a root near (1.74762, 0.91472).
func newTestSystem() (funcs []Func, derivs []Func) {
	f1 := func(x []float64) float64 {
		return x[0]*x[0]*math.Pow(x[1], 3) - x[0]*math.Pow(x[1], 3) - 1
	}
	f2 := func(x []float64) float64 {
		return math.Pow(x[0], 3) - x[0]*math.Pow(x[1], 3) - 4
	}
	df1dx1 := func(x []float64) float64 {
		return 2*x[0]*math.Pow(x[1], 3) - math.Pow(x[1], 3)
	}
	df1dx2 := func(x []float64) float64 {
		return 3 * (x[0]*x[0]*x[1]*x[1] - x[0]*x[1]*x[1])
	}
	df2dx1 := func(x []float64) float64 {
		return 3*x[0]*x[0] - math.Pow(x[1], 3)
	}
	df2dx2 := func(x []float64) float64 {
		return -3 * x[0] * x[1] * x[1]
	}
	return []Func{f1, f2}, []Func{df1dx1, df1dx2, df2dx1, df2dx2}
}

func TestNewtonNumericalJacobian(t *testing.T) {
	chk.PrintTitle("newton, finite difference jacobian")

	funcs, _ := newTestSystem()
	solver := NewRootSolver()
	solver.AddFunction(funcs[0])
	solver.AddFunction(funcs[1])
	solver.SetInitX([]float64{1, 1})
	solver.SetXTol(1e-4)
	if err := solver.Solve(); err != nil {
		t.Fatalf("solve: %v", err)
	}
	sol := solver.Solution()
	chk.Scalar(t, "x1", 1e-4, sol[0], 1.74762)
	chk.Scalar(t, "x2", 1e-4, sol[1], 0.91472)
}

func TestNewtonAnalyticJacobian(t *testing.T) {
	chk.PrintTitle("newton, analytic jacobian")

	funcs, derivs := newTestSystem()
	solver := NewRootSolver()
	solver.AddFunction(funcs[0])
	solver.AddFunction(funcs[1])
	for _, d := range derivs {
		solver.AddDerivativeFunction(d)
	}
	solver.SetInitX([]float64{1, 1})
	solver.SetXTol(1e-6)
	if err := solver.Solve(); err != nil {
		t.Fatalf("solve: %v", err)
	}
	sol := solver.Solution()
	chk.Scalar(t, "x1", 1e-5, sol[0], 1.74762)
	chk.Scalar(t, "x2", 1e-5, sol[1], 0.91472)
	if solver.IterCount() > 20 {
		t.Fatalf("too many iterations: %d", solver.IterCount())
	}
}

func TestNewtonDimensionMismatch(t *testing.T) {
	chk.PrintTitle("newton, dimension mismatch")

	solver := NewRootSolver()
	solver.AddFunction(func(x []float64) float64 { return x[0] })
	solver.SetInitX([]float64{1, 2})
	if err := solver.Solve(); err == nil {
		t.Fatal("mismatched variable count must fail")
	}

	solver2 := NewRootSolver()
	solver2.AddFunction(func(x []float64) float64 { return x[0] - 1 })
	solver2.AddDerivativeFunction(func(x []float64) float64 { return 1 })
	solver2.AddDerivativeFunction(func(x []float64) float64 { return 0 })
	solver2.SetInitX([]float64{0})
	if err := solver2.Solve(); err == nil {
		t.Fatal("wrong derivative count must fail")
	}
}

func TestNewtonNonConvergence(t *testing.T) {
	chk.PrintTitle("newton, non-convergence")

	solver := NewRootSolver()
	// x^2 + 1 has no real root; Newton wanders forever.
	solver.AddFunction(func(x []float64) float64 { return x[0]*x[0] + 1 })
	solver.SetInitX([]float64{0.5})
	solver.SetMaxIter(10)
	if err := solver.Solve(); err == nil {
		t.Fatal("expected non-convergence")
	}
	if len(solver.Solution()) != 1 {
		t.Fatal("last iterate must remain available")
	}
}
