package numeric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PolyRoots returns all complex roots of the real-coefficient
// polynomial c[0] + c[1]*x + ... + c[n]*x^n. Roots are the eigenvalues
// of the monic companion matrix; degenerate leading coefficients are
// deflated first and zero roots are split off directly.
func PolyRoots(coeff []float64) ([]complex128, error) {
	// Deflate vanishing leading coefficients.
	degree := len(coeff) - 1
	for degree > 0 && coeff[degree] == 0 {
		degree--
	}
	if degree <= 0 {
		if len(coeff) == 0 {
			return nil, fmt.Errorf("empty polynomial")
		}
		return nil, nil
	}
	coeff = coeff[:degree+1]

	// Zero roots come from vanishing low-order coefficients.
	var roots []complex128
	low := 0
	for low < degree && coeff[low] == 0 {
		roots = append(roots, 0)
		low++
	}
	coeff = coeff[low:]
	degree -= low

	switch degree {
	case 0:
		return roots, nil
	case 1:
		return append(roots, complex(-coeff[0]/coeff[1], 0)), nil
	case 2:
		r1, r2 := quadRoots(coeff[2], coeff[1], coeff[0])
		return append(roots, r1, r2), nil
	}

	// Monic companion matrix of the remaining polynomial.
	lead := coeff[degree]
	companion := mat.NewDense(degree, degree, nil)
	for i := 0; i < degree; i++ {
		companion.Set(i, degree-1, -coeff[i]/lead)
		if i > 0 {
			companion.Set(i, i-1, 1)
		}
	}
	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return nil, fmt.Errorf("companion matrix eigenvalue computation failed")
	}
	return append(roots, eig.Values(nil)...), nil
}

// quadRoots solves a*x^2 + b*x + c = 0 avoiding cancellation on the
// larger root.
func quadRoots(a, b, c float64) (complex128, complex128) {
	disc := b*b - 4*a*c
	if disc < 0 {
		re := -b / (2 * a)
		im := math.Sqrt(-disc) / (2 * a)
		return complex(re, im), complex(re, -im)
	}
	q := -0.5 * (b + math.Copysign(math.Sqrt(disc), b))
	if q == 0 {
		return 0, 0
	}
	return complex(q/a, 0), complex(c/q, 0)
}

// PolyEval evaluates the polynomial at a complex point.
func PolyEval(coeff []float64, x complex128) complex128 {
	result := complex(0, 0)
	for i := len(coeff) - 1; i >= 0; i-- {
		result = result*x + complex(coeff[i], 0)
	}
	return result
}

// SolveComplex solves the dense complex system A*x = rhs by embedding
// it as the 2n x 2n real system [[Re -Im],[Im Re]].
func SolveComplex(a [][]complex128, rhs []complex128) ([]complex128, error) {
	n := len(rhs)
	if len(a) != n {
		return nil, fmt.Errorf("matrix has %d rows for %d unknowns", len(a), n)
	}
	real2n := mat.NewDense(2*n, 2*n, nil)
	b := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		if len(a[i]) != n {
			return nil, fmt.Errorf("matrix row %d has %d columns, want %d", i, len(a[i]), n)
		}
		for j := 0; j < n; j++ {
			real2n.Set(i, j, real(a[i][j]))
			real2n.Set(i, n+j, -imag(a[i][j]))
			real2n.Set(n+i, j, imag(a[i][j]))
			real2n.Set(n+i, n+j, real(a[i][j]))
		}
		b.SetVec(i, real(rhs[i]))
		b.SetVec(n+i, imag(rhs[i]))
	}
	var lu mat.LU
	lu.Factorize(real2n)
	x := mat.NewVecDense(2*n, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		return nil, fmt.Errorf("complex solve failed: %v", err)
	}
	solution := make([]complex128, n)
	for i := 0; i < n; i++ {
		solution[i] = complex(x.AtVec(i), x.AtVec(n+i))
	}
	return solution, nil
}
