package analysis

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"netan/pkg/circuit"
	"netan/pkg/netlist"
)

func maxLTEAfterRun(t *testing.T, src string) float64 {
	t.Helper()
	deck, err := netlist.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	ckt := circuit.Build(deck)
	tran := NewTransient(ckt, deck.Analyses[0])
	if err := tran.Run(); err != nil {
		t.Fatal(err)
	}
	return tran.MaxLTE()
}

func TestMaxLTEShrinksWithTick(t *testing.T) {
	chk.PrintTitle("tran lte estimate")

	deck := func(tick string) string {
		return `* rc lte
V1 in 0 1
R1 in mid 1k
C1 mid 0 1u
.tran ` + tick + ` 200u
.option tran method=euler
`
	}
	coarse := maxLTEAfterRun(t, deck("10u"))
	fine := maxLTEAfterRun(t, deck("1u"))
	if coarse <= 0 || fine <= 0 {
		t.Fatalf("LTE estimates must be positive while the voltage still moves: %g %g", coarse, fine)
	}
	// Backward Euler truncation error scales with the square of the tick.
	if fine >= coarse/10 {
		t.Fatalf("LTE should shrink with the tick: coarse %g, fine %g", coarse, fine)
	}
}
