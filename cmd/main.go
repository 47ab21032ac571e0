package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/cpmech/gosl/io"

	"netan/pkg/analysis"
	"netan/pkg/circuit"
	"netan/pkg/measure"
	"netan/pkg/netlist"
	"netan/pkg/output"
	"netan/pkg/result"
	"netan/pkg/util"
)

var (
	htmlOut    = flag.String("html", "", "write plotted waveforms to an HTML chart page")
	pngOut     = flag.String("png", "", "write plotted waveforms to a PNG image")
	plotWidth  = flag.Int("plotwidth", 120, "terminal plot width")
	plotHeight = flag.Int("plotheight", 30, "terminal plot height")
	debugSim   = flag.Bool("debug", false, "dump stamped equations on every re-formulation")
)

func fileNameWithoutSuffix(fname string) string {
	if dot := strings.Index(fname, "."); dot >= 0 {
		return fname[:dot]
	}
	return fname
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		io.PfYel("WARNING: %s\n", w)
	}
}

func runTransient(ckt *circuit.Circuit, deck *netlist.Deck, param netlist.AnalysisParam, inFile string) (*result.Store, error) {
	tran := analysis.NewTransient(ckt, param)
	if *debugSim {
		tran.SetDebug(os.Stdout)
	}
	io.Pf("Starting transient simulation %q\n", param.Name)
	start := time.Now()
	if err := tran.Run(); err != nil {
		return nil, err
	}
	io.Pf("Simulation finished, %d steps simulated in %.3f seconds\n",
		tran.Result().Size(), time.Since(start).Seconds())

	if deck.SaveData {
		tr0File := fileNameWithoutSuffix(inFile) + ".tr0"
		io.Pf("Writing simulation data to %s\n", tr0File)
		writer := output.NewTR0Writer(ckt, tr0File)
		writer.AdjustNumberWidth(param.SimTick, param.SimTime)
		if err := writer.WriteData(tran.Result()); err != nil {
			return nil, err
		}
	}
	for _, mr := range measure.Run(tran.Result(), deck.Measures) {
		if mr.Err != nil {
			io.Pfred("Measure error: %s: %v\n", mr.Label, mr.Err)
			continue
		}
		io.Pf("Measurement %s: %E second(s)\n", mr.Label, mr.Value)
	}
	return tran.Result(), nil
}

func runPoleZero(ckt *circuit.Circuit, param netlist.AnalysisParam) (*result.Store, error) {
	pz := analysis.NewPoleZero(ckt, param)
	if err := pz.Run(); err != nil {
		return nil, err
	}

	io.Pf("Moments:\n ")
	for _, m := range pz.Moments() {
		io.Pf(" %.6G", m)
	}
	io.Pf("\n")

	if param.Type == netlist.AnalysisTF {
		io.Pf("Denominator coefficients in ascending powers of s:\n ")
		for _, c := range pz.DenominatorCoeff() {
			io.Pf(" %.6G", c)
		}
		io.Pf("\nNumerator coefficients in ascending powers of s:\n ")
		for _, c := range pz.NumeratorCoeff() {
			io.Pf(" %.6G", c)
		}
		io.Pf("\n")
	}

	io.Pf("Poles:\n")
	for _, p := range pz.Poles() {
		io.Pf("  %s\n", util.FormatComplex(p))
	}
	io.Pf("Zeros:\n")
	for _, z := range pz.Zeros() {
		io.Pf("  %s\n", util.FormatComplex(z))
	}
	io.Pf("Residues:\n")
	for _, r := range pz.Residues() {
		io.Pf("  %s\n", util.FormatComplex(r))
	}
	return pz.Result(), nil
}

func findResultByName(results []*result.Store, name string) *result.Store {
	for _, res := range results {
		if res.Name() == name {
			return res
		}
	}
	return nil
}

func run() int {
	flag.Parse()
	if flag.NArg() != 1 {
		io.Pfred("Input file missing, please provide a circuit netlist\n")
		return 1
	}
	inFile := flag.Arg(0)
	content, err := os.ReadFile(inFile)
	if err != nil {
		io.Pfred("Error reading netlist file: %v\n", err)
		return 1
	}

	deck, err := netlist.Parse(string(content))
	if err != nil {
		io.Pfred("Error parsing netlist: %v\n", err)
		return 2
	}
	printWarnings(deck.Warnings)

	ckt := circuit.Build(deck)
	io.Pf("Ground node identified as node %q\n", ckt.Node(ckt.GroundNodeID()).Name)
	printWarnings(ckt.Warnings())

	var results []*result.Store
	for _, param := range deck.Analyses {
		switch param.Type {
		case netlist.AnalysisTran:
			res, err := runTransient(ckt, deck, param, inFile)
			if err != nil {
				io.Pfred("Transient analysis %q failed: %v\n", param.Name, err)
				return 2
			}
			results = append(results, res)
		case netlist.AnalysisPZ, netlist.AnalysisTF:
			res, err := runPoleZero(ckt, param)
			if err != nil {
				io.Pfred("Pole-zero analysis %q failed: %v\n", param.Name, err)
				return 2
			}
			results = append(results, res)
		default:
			io.PfYel("Analysis %q has no runnable type and is skipped\n", param.Name)
		}
	}

	plotter := output.NewPlotter(*plotWidth, *plotHeight)
	for _, pd := range deck.Plots {
		res := findResultByName(results, pd.SimName)
		if res == nil {
			io.Pfred("Plot ERROR: Analysis named %q does not exist\n", pd.SimName)
			continue
		}
		plotter.Plot(res, pd, os.Stdout)
		if *htmlOut != "" {
			if err := output.WriteHTML(res, deck.Plots, *htmlOut); err != nil {
				io.Pfred("HTML plot failed: %v\n", err)
			}
		}
		if *pngOut != "" {
			if err := output.WritePNG(res, deck.Plots, *pngOut); err != nil {
				io.Pfred("PNG plot failed: %v\n", err)
			}
		}
	}

	return 0
}

func main() {
	os.Exit(run())
}
