package analysis

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"netan/pkg/circuit"
	"netan/pkg/netlist"
	"netan/pkg/result"
)

func runTran(t *testing.T, src string) (*circuit.Circuit, *result.Store) {
	t.Helper()
	deck, err := netlist.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ckt := circuit.Build(deck)
	var param netlist.AnalysisParam
	found := false
	for _, p := range deck.Analyses {
		if p.Type == netlist.AnalysisTran {
			param = p
			found = true
		}
	}
	if !found {
		t.Fatal("no .tran card in test netlist")
	}
	tran := NewTransient(ckt, param)
	if err := tran.Run(); err != nil {
		t.Fatalf("transient run: %v", err)
	}
	return ckt, tran.Result()
}

func TestResistorDivider(t *testing.T) {
	chk.PrintTitle("tran resistor divider")

	ckt, res := runTran(t, `* r divider
V1 in 0 5
R1 in mid 1k
R2 mid 0 1k
.tran 1u 10u
.option tran method=euler
`)
	mid, _ := ckt.FindNodeByName("mid")
	if res.Size() != 10 {
		t.Fatalf("steps = %d, want 10", res.Size())
	}
	for step := 0; step < res.Size(); step++ {
		chk.Scalar(t, "V(mid)", 1e-9, res.NodeVoltage(mid.ID, step), 2.5)
	}
}

func TestRCCharge(t *testing.T) {
	chk.PrintTitle("tran rc charge")

	ckt, res := runTran(t, `* rc charge
V1 in 0 1
R1 in mid 1k
C1 mid 0 1u
.tran 10u 5m
.option tran method=euler
`)
	mid, _ := ckt.FindNodeByName("mid")
	final := res.NodeVoltage(mid.ID, res.Size()-1)
	want := 1 - math.Exp(-5)
	if math.Abs(final-want)/want > 0.02 {
		t.Fatalf("V(mid) final = %g, want within 2%% of %g", final, want)
	}
}

func TestRCChargeCapacitorCurrent(t *testing.T) {
	chk.PrintTitle("tran rc capacitor branch relation")

	// With BE integration the resistor current equals
	// C/h * (V(t_k) - V(t_k-1)) at every accepted step.
	ckt, res := runTran(t, `* rc be relation
V1 in 0 1
R1 in mid 1k
C1 mid 0 1u
.tran 10u 1m
.option tran method=euler
`)
	mid, _ := ckt.FindNodeByName("mid")
	in, _ := ckt.FindNodeByName("in")
	h := 10e-6
	for step := 1; step < res.Size(); step++ {
		vNow := res.NodeVoltage(mid.ID, step)
		vPrev := res.NodeVoltage(mid.ID, step-1)
		iCap := 1e-6 / h * (vNow - vPrev)
		iRes := (res.NodeVoltage(in.ID, step) - vNow) / 1e3
		chk.Scalar(t, "I_C == I_R", 1e-9, iCap, iRes)
	}
}

func TestRLStep(t *testing.T) {
	chk.PrintTitle("tran rl step")

	ckt, res := runTran(t, `* rl step
V1 in 0 1
R1 in mid 1
L1 mid 0 1
.tran 1m 5
.option tran method=trap
`)
	l1, _ := ckt.FindDeviceByName("L1")
	final := res.DeviceCurrent(l1.ID, res.Size()-1)
	want := 1 - math.Exp(-5)
	if math.Abs(final-want)/want > 0.01 {
		t.Fatalf("I(L1) final = %g, want within 1%% of %g", final, want)
	}
}

// lcEnergy sums the capacitor and inductor energy at one step.
func lcEnergy(ckt *circuit.Circuit, res *result.Store, step int) float64 {
	node, _ := ckt.FindNodeByName("a")
	l1, _ := ckt.FindDeviceByName("L1")
	v := res.NodeVoltage(node.ID, step)
	i := res.DeviceCurrent(l1.ID, step)
	return 0.5*1e-6*v*v + 0.5*1e-3*i*i
}

// lcDeck kicks a lossless LC loop with a PWL source that holds 1 V
// for a quarter period and then turns into a plain wire (0 V source).
func lcDeck(tick string) string {
	return `* lc oscillator
V1 b 0 PWL(0 1 50u 1 51u 0)
L1 a b 1m
C1 a 0 1u
.tran ` + tick + ` 460u
`
}

func TestLCOscillatorTrapEnergy(t *testing.T) {
	chk.PrintTitle("tran lc energy, trapezoidal")

	h := 0.05e-6
	ckt, res := runTran(t, lcDeck("0.05u")+".option tran method=trap\n")
	// Reference energy once the kick source has settled to 0 V;
	// two full periods (2*pi*sqrt(LC) ~ 199us) later it must agree
	// within 5%: trapezoidal integration preserves energy.
	refStep := res.Size() - 1 - int(2*math.Pi*math.Sqrt(1e-9)*2/h)
	ref := lcEnergy(ckt, res, refStep)
	final := lcEnergy(ckt, res, res.Size()-1)
	if ref <= 0 {
		t.Fatalf("reference energy %g must be positive", ref)
	}
	if math.Abs(final-ref)/ref > 0.05 {
		t.Fatalf("trap energy drifted: ref %g, final %g", ref, final)
	}
}

func TestLCOscillatorBEDamping(t *testing.T) {
	chk.PrintTitle("tran lc energy, backward Euler")

	h := 0.5e-6
	ckt, res := runTran(t, lcDeck("0.5u")+".option tran method=euler\n")
	refStep := res.Size() - 1 - int(2*math.Pi*math.Sqrt(1e-9)*2/h)
	ref := lcEnergy(ckt, res, refStep)
	final := lcEnergy(ckt, res, res.Size()-1)
	if ref <= 0 {
		t.Fatalf("reference energy %g must be positive", ref)
	}
	// Backward Euler damps numerically: energy decays.
	if final >= ref*0.95 {
		t.Fatalf("BE energy should decay: ref %g, final %g", ref, final)
	}
}

func TestIdealSourceReadThrough(t *testing.T) {
	chk.PrintTitle("tran ideal source read-through")

	ckt, res := runTran(t, `* read-through
V1 n 0 3
R1 n mid 1k
C1 mid 0 1u
.tran 1u 100u
.option tran method=gear2
`)
	node, _ := ckt.FindNodeByName("n")
	for step := 0; step < res.Size(); step++ {
		chk.Scalar(t, "V(n)", 0, res.NodeVoltage(node.ID, step), 3.0)
	}
}

func TestTerminationSet(t *testing.T) {
	chk.PrintTitle("tran termination set")

	deck, err := netlist.Parse(`* rc terminate
V1 in 0 1
R1 in mid 1k
C1 mid 0 1u
.tran 10u 1
.option tran method=euler
`)
	if err != nil {
		t.Fatal(err)
	}
	ckt := circuit.Build(deck)
	tran := NewTransient(ckt, deck.Analyses[0])
	mid, _ := ckt.FindNodeByName("mid")
	tran.TerminateOnNodeVoltage(mid.ID, 0.5)
	if err := tran.Run(); err != nil {
		t.Fatal(err)
	}
	res := tran.Result()
	// The run stops at the crossing, far before the 1 s simEnd.
	if res.CurrentTime() > 2e-3 {
		t.Fatalf("termination set ignored, ran until %g", res.CurrentTime())
	}
	v1 := res.NodeVoltageBackstep(mid.ID, 1)
	v2 := res.NodeVoltageBackstep(mid.ID, 2)
	if !(v2 <= 0.5 && v1 >= 0.5) {
		t.Fatalf("no crossing at termination: %g -> %g", v2, v1)
	}
}
