package result

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"netan/pkg/circuit"
	"netan/pkg/netlist"
)

func buildCircuit(t *testing.T, src string) *circuit.Circuit {
	t.Helper()
	deck, err := netlist.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return circuit.Build(deck)
}

func TestIndexMapDimension(t *testing.T) {
	chk.PrintTitle("result index map")

	// 4 non-ground nodes + branches for V1, L1 and the CCVS H1 plus
	// its sample resistor R1.
	ckt := buildCircuit(t, `* index map
V1 in 0 1
R1 in mid 1k
L1 mid out 1m
R2 out 0 1k
H1 aux 0 in mid 10
R3 aux 0 1k
`)
	m := NewIndexMap(ckt)
	// nodes: in, mid, out, aux -> 4 rows; branches: V1, L1, H1, R1 -> 4 rows
	if m.Dimension() != 8 {
		t.Fatalf("dimension = %d, want 8", m.Dimension())
	}
	ground := ckt.GroundNodeID()
	if m.NodeRow(ground) != InvalidRow {
		t.Fatal("ground node must have no row")
	}
	seen := make(map[int]bool)
	for _, node := range ckt.Nodes() {
		if row := m.NodeRow(node.ID); row != InvalidRow {
			if seen[row] {
				t.Fatalf("duplicate row %d", row)
			}
			seen[row] = true
		}
	}
	for _, dev := range ckt.Devices() {
		if row := m.DevRow(dev.ID); row != InvalidRow {
			if seen[row] {
				t.Fatalf("duplicate row %d", row)
			}
			seen[row] = true
		}
	}
	// The non-sentinel image is exactly {0..D-1}.
	for row := 0; row < m.Dimension(); row++ {
		if !seen[row] {
			t.Fatalf("row %d unassigned", row)
		}
	}
}

func TestAppendAndLookup(t *testing.T) {
	chk.PrintTitle("result append/lookup")

	ckt := buildCircuit(t, `* store
I1 0 n1 1m
R1 n1 0 1k
`)
	s := NewStore(ckt, "tran")
	if s.Dimension() != 1 {
		t.Fatalf("dimension = %d, want 1", s.Dimension())
	}
	if err := s.Append(1e-6, []float64{1.0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(2e-6, []float64{2.0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(2e-6, []float64{3.0}); err == nil {
		t.Fatal("non-increasing tick must be rejected")
	}
	if err := s.Append(3e-6, []float64{1, 2}); err == nil {
		t.Fatal("dimension mismatch must be rejected")
	}

	chk.Scalar(t, "valueAt 0", 1e-15, s.ValueAt(0, 0), 1.0)
	chk.Scalar(t, "valueAt 1", 1e-15, s.ValueAt(0, 1), 2.0)
	chk.Scalar(t, "backstep 1", 1e-15, s.Backstep(0, 1), 2.0)
	chk.Scalar(t, "backstep 2", 1e-15, s.Backstep(0, 2), 1.0)
	// Insufficient history falls back to the zero initial condition.
	chk.Scalar(t, "backstep 3", 1e-15, s.Backstep(0, 3), 0.0)
	chk.Scalar(t, "currentTime", 1e-18, s.CurrentTime(), 2e-6)
	chk.Scalar(t, "stepSize", 1e-18, s.StepSize(0), 1e-6)
}

func TestSourceReadThrough(t *testing.T) {
	chk.PrintTitle("result ideal source read-through")

	ckt := buildCircuit(t, `* read-through
V1 n 0 3
R1 n 0 1k
`)
	s := NewStore(ckt, "tran")
	node, _ := ckt.FindNodeByName("n")
	// Rows: V(n), I(V1). Append noisy solved values: the node voltage
	// must read the stamped 3 V regardless.
	for i := 1; i <= 3; i++ {
		if err := s.Append(float64(i)*1e-6, []float64{2.99999, -0.003}); err != nil {
			t.Fatal(err)
		}
	}
	for step := 0; step < 3; step++ {
		chk.Scalar(t, "V(n)", 0, s.NodeVoltage(node.ID, step), 3.0)
	}
	chk.Scalar(t, "V(n) backstep", 0, s.NodeVoltageBackstep(node.ID, 1), 3.0)
	chk.Scalar(t, "ground", 0, s.NodeVoltage(ckt.GroundNodeID(), 0), 0.0)

	// Current sources read their stamped value too.
	ckt2 := buildCircuit(t, `* isource
I1 0 n1 2m
R1 n1 0 1k
`)
	s2 := NewStore(ckt2, "tran")
	if err := s2.Append(1e-6, []float64{2.0}); err != nil {
		t.Fatal(err)
	}
	i1, _ := ckt2.FindDeviceByName("I1")
	chk.Scalar(t, "I(I1)", 0, s2.DeviceCurrent(i1.ID, 0), 2e-3)
}

func TestDerivative(t *testing.T) {
	chk.PrintTitle("result derivative")

	ckt := buildCircuit(t, `* derivative
I1 0 n1 1m
R1 n1 0 1k
`)
	s := NewStore(ckt, "tran")
	node, _ := ckt.FindNodeByName("n1")
	// v(t) = t^2 on a uniform grid.
	h := 1.0e-3
	for i := 1; i <= 6; i++ {
		tk := float64(i) * h
		if err := s.Append(tk, []float64{tk * tk}); err != nil {
			t.Fatal(err)
		}
	}
	// First difference of t^2 at the last interval: (t2^2-t1^2)/h.
	t2 := 6 * h
	t1 := 5 * h
	want := (t2*t2 - t1*t1) / h
	chk.Scalar(t, "order 1", 1e-9, s.NodeVoltageDerivative(node.ID, 1, 1), want)
	// Second derivative of t^2 is 2 everywhere.
	chk.Scalar(t, "order 2", 1e-6, s.NodeVoltageDerivative(node.ID, 2, 1), 2.0)
	// Third derivative of t^2 vanishes.
	chk.Scalar(t, "order 3", 1e-6, s.NodeVoltageDerivative(node.ID, 3, 1), 0.0)
	// Insufficient history yields 0.
	chk.Scalar(t, "no history", 0, s.NodeVoltageDerivative(node.ID, 3, 4), 0.0)
}
