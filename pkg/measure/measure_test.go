package measure

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"netan/pkg/analysis"
	"netan/pkg/circuit"
	"netan/pkg/netlist"
	"netan/pkg/result"
)

func runDeck(t *testing.T, src string) (*netlist.Deck, *result.Store) {
	t.Helper()
	deck, err := netlist.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ckt := circuit.Build(deck)
	tran := analysis.NewTransient(ckt, deck.Analyses[0])
	if err := tran.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	return deck, tran.Result()
}

func TestMeasureRampDelay(t *testing.T) {
	chk.PrintTitle("measure ramp delay")

	// Two identical ramps, the target one delayed by 10us: measuring
	// between the 0.5 V crossings recovers the shift.
	deck, res := runDeck(t, `* ramp delay
V1 a 0 PWL(0 0 100u 1)
V2 b 0 PWL(10u 0 110u 1)
R1 a 0 1k
R2 b 0 1k
.tran 1u 200u
.option tran method=euler
.measure tran shift trig V(a)=0.5 targ V(b)=0.5
`)
	results := Run(res, deck.Measures)
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("measure: %v", results[0].Err)
	}
	chk.Scalar(t, "shift", 1e-7, results[0].Value, 10e-6)
}

func TestMeasureNeverCrossed(t *testing.T) {
	chk.PrintTitle("measure missing crossing")

	deck, res := runDeck(t, `* no crossing
V1 a 0 1
R1 a 0 1k
.tran 1u 10u
.option tran method=euler
.measure tran never trig V(a)=0.5 targ V(a)=5
`)
	results := Run(res, deck.Measures)
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Err == nil {
		t.Fatal("expected a measure error for the missed target")
	}
	chk.Scalar(t, "sentinel", 0, results[0].Value, 0)
}

func TestMeasureOtherAnalysisIgnored(t *testing.T) {
	chk.PrintTitle("measure analysis filter")

	deck, res := runDeck(t, `* filter
V1 a 0 1
R1 a 0 1k
.tran 1u 10u
.measure other lbl trig V(a)=0.5 targ V(a)=0.6
`)
	if results := Run(res, deck.Measures); len(results) != 0 {
		t.Fatalf("measures of another analysis must be skipped, got %d", len(results))
	}
}
