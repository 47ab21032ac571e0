package output

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"netan/pkg/circuit"
	"netan/pkg/result"
)

// TR0Writer dumps a result history in the HSPICE ascii tr0 layout:
// a column-count header, type codes (1 voltage, 8 current), column
// names and one row of formatted numbers per tick.
type TR0Writer struct {
	ckt              *circuit.Circuit
	outFile          string
	significandWidth int
	exponentWidth    int // including the sign
}

func NewTR0Writer(ckt *circuit.Circuit, outFile string) *TR0Writer {
	return &TR0Writer{
		ckt:              ckt,
		outFile:          outFile,
		significandWidth: 9,
		exponentWidth:    3,
	}
}

// AdjustNumberWidth widens the significand when the tick/stop ratio
// needs more digits than the default to keep rows distinguishable.
func (w *TR0Writer) AdjustNumberWidth(simTick, simTime float64) {
	n := int(math.Log10(math.Abs(simTime/simTick))) + 1
	if n > w.significandWidth {
		w.significandWidth = n
	}
}

// formatNumber renders a number with a fixed significand/exponent
// layout, e.g. 0.5000000E-02.
func formatNumber(n float64, significandWidth, exponentWidth int) string {
	if n == 0 {
		return "0.0000000E+00"
	}
	exponent := int(math.Log10(math.Abs(n))) + 1
	mantissa := n / math.Pow(10, float64(exponent))
	if math.Abs(mantissa) < 0.1 {
		mantissa *= 10
		exponent--
	}
	mts := strconv.FormatFloat(mantissa, 'f', significandWidth-2, 64)
	expn := fmt.Sprintf("%+0*d", exponentWidth, exponent)
	return mts + "E" + expn
}

type headerColumn struct {
	typeCode int
	name     string
}

func columnHeader(idxMap result.IndexMap, ckt *circuit.Circuit) []headerColumn {
	header := make([]headerColumn, idxMap.Dimension()+1)
	header[0] = headerColumn{1, "TIME"}
	for _, node := range ckt.Nodes() {
		if row := idxMap.NodeRow(node.ID); row != result.InvalidRow {
			header[row+1] = headerColumn{1, node.Name}
		}
	}
	for _, dev := range ckt.Devices() {
		if row := idxMap.DevRow(dev.ID); row != result.InvalidRow {
			header[row+1] = headerColumn{8, dev.Name}
		}
	}
	return header
}

func (w *TR0Writer) writeHeader(out *bufio.Writer, res *result.Store) {
	fmt.Fprintf(out, "%04d000000000000000\n", res.Dimension())
	fmt.Fprintf(out, "%s Data generated by netan\n", time.Now().Format(time.ANSIC))
	fmt.Fprintln(out, 0)
	fmt.Fprintln(out, 1)
	header := columnHeader(res.Map(), w.ckt)
	for i, col := range header {
		fmt.Fprintf(out, "%d ", col.typeCode)
		if i != len(header)-1 {
			fmt.Fprint(out, " ")
		} else {
			fmt.Fprintln(out)
		}
	}
	for i, col := range header {
		if col.typeCode == 1 {
			if i != 0 || col.name != "TIME" {
				fmt.Fprint(out, "V(")
			}
		} else {
			fmt.Fprint(out, "I(")
		}
		fmt.Fprint(out, col.name)
		if (i+1)%3 == 0 {
			fmt.Fprintln(out)
		} else {
			fmt.Fprint(out, " ")
		}
	}
	fmt.Fprintln(out, " $&%#")
}

func (w *TR0Writer) writeRows(out *bufio.Writer, res *result.Store) {
	cols := res.Dimension()
	for t := 0; t < res.Size(); t++ {
		fmt.Fprint(out, formatNumber(res.StepTime(t), w.significandWidth, w.exponentWidth), " ")
		for i := 0; i < cols; i++ {
			fmt.Fprint(out, formatNumber(res.ValueAt(i, t), w.significandWidth, w.exponentWidth))
			if i == cols-1 {
				fmt.Fprintln(out)
			} else {
				fmt.Fprint(out, " ")
			}
		}
	}
	fmt.Fprintln(out, "0.1000000E+31")
}

func (w *TR0Writer) WriteData(res *result.Store) error {
	f, err := os.Create(w.outFile)
	if err != nil {
		return fmt.Errorf("creating %s: %v", w.outFile, err)
	}
	defer f.Close()
	out := bufio.NewWriter(f)
	w.writeHeader(out, res)
	w.writeRows(out, res)
	return out.Flush()
}
