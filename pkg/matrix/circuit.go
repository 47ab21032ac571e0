package matrix

import (
	"fmt"
	"io"

	"github.com/edp1096/sparse"
	"gonum.org/v1/gonum/mat"
)

// CircuitMatrix is the linear-solver backend of the transient engine.
// The densely stamped A = G + C is loaded once per formulation and
// factored; subsequent ticks only swap the right-hand side and
// re-solve against the cached factorization.
type CircuitMatrix struct {
	Size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
	config   *sparse.Configuration
	factored bool
}

func NewMatrix(size int) (*CircuitMatrix, error) {
	config := &sparse.Configuration{
		Real:           true,
		Complex:        false,
		Expandable:     true,
		Translate:      false,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
		Annotate:       0,
	}

	m, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %v", err)
	}

	return &CircuitMatrix{
		Size:     size,
		matrix:   m,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
		config:   config,
	}, nil
}

// Load clears the factorization and fills the backend with the dense
// system matrix.
func (m *CircuitMatrix) Load(a mat.Matrix) error {
	rows, cols := a.Dims()
	if rows != m.Size || cols != m.Size {
		return fmt.Errorf("matrix size %dx%d does not match system size %d", rows, cols, m.Size)
	}
	m.matrix.Clear()
	m.factored = false
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if value := a.At(i, j); value != 0 {
				m.matrix.GetElement(int64(i+1), int64(j+1)).Real += value
			}
		}
	}
	return nil
}

func (m *CircuitMatrix) Factor() error {
	if err := m.matrix.Factor(); err != nil {
		return fmt.Errorf("matrix factorization failed: %v", err)
	}
	m.factored = true
	return nil
}

// SolveVec solves Ax=b against the cached factorization and returns a
// 0-based solution vector.
func (m *CircuitMatrix) SolveVec(b *mat.VecDense) ([]float64, error) {
	if !m.factored {
		return nil, fmt.Errorf("matrix is not factored")
	}
	if b.Len() != m.Size {
		return nil, fmt.Errorf("rhs size %d does not match system size %d", b.Len(), m.Size)
	}
	for i := 0; i < m.Size; i++ {
		m.rhs[i+1] = b.AtVec(i)
	}
	solution, err := m.matrix.Solve(m.rhs)
	if err != nil {
		return nil, fmt.Errorf("matrix solve failed: %v", err)
	}
	m.solution = solution
	x := make([]float64, m.Size)
	copy(x, solution[1:m.Size+1])
	return x, nil
}

// PrintSystem dumps the loaded equations, one row per line with only
// the nonzero terms.
func (m *CircuitMatrix) PrintSystem(w io.Writer) {
	fmt.Fprintf(w, "\nCircuit Equations (%dx%d):\n", m.Size, m.Size)
	fmt.Fprintln(w, "Node equations 1..n, followed by branch equations")
	for i := 1; i <= m.Size; i++ {
		rowHasElements := false
		for j := 1; j <= m.Size; j++ {
			if value := m.matrix.GetElement(int64(i), int64(j)).Real; value != 0 {
				fmt.Fprintf(w, "  %+g*x%d ", value, j)
				rowHasElements = true
			}
		}
		if rowHasElements {
			fmt.Fprintf(w, " = %g\n", m.rhs[i])
		}
	}
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
	}
}
