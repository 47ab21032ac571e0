package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cpmech/gosl/chk"

	"netan/pkg/analysis"
	"netan/pkg/circuit"
	"netan/pkg/netlist"
)

func TestFormatNumber(t *testing.T) {
	chk.PrintTitle("tr0 number format")

	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.0000000E+00"},
		{0.5, "0.5000000E+00"},
		{5, "0.5000000E+01"},
		{-0.005, "-0.5000000E-02"},
		{1234.5, "0.1234500E+04"},
	}
	for _, c := range cases {
		if got := formatNumber(c.in, 9, 3); got != c.want {
			t.Fatalf("formatNumber(%g) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWriteData(t *testing.T) {
	chk.PrintTitle("tr0 writer")

	deck, err := netlist.Parse(`* rc
V1 in 0 1
R1 in mid 1k
C1 mid 0 1u
.tran 10u 100u
.option tran method=euler
`)
	if err != nil {
		t.Fatal(err)
	}
	ckt := circuit.Build(deck)
	tran := analysis.NewTransient(ckt, deck.Analyses[0])
	if err := tran.Run(); err != nil {
		t.Fatal(err)
	}

	outFile := filepath.Join(t.TempDir(), "rc.tr0")
	writer := NewTR0Writer(ckt, outFile)
	writer.AdjustNumberWidth(10e-6, 100e-6)
	if err := writer.WriteData(tran.Result()); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(content), "\n")
	if !strings.HasPrefix(lines[0], "0003") {
		t.Fatalf("header column count line = %q", lines[0])
	}
	text := string(content)
	if !strings.Contains(text, "TIME") {
		t.Fatal("missing TIME column")
	}
	if !strings.Contains(text, " $&%#") {
		t.Fatal("missing header terminator")
	}
	if !strings.Contains(text, "0.1000000E+31") {
		t.Fatal("missing data terminator")
	}
	// One data row per tick.
	if res := tran.Result(); res.Size() != 10 {
		t.Fatalf("steps = %d", res.Size())
	}
}
