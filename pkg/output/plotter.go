package output

import (
	"fmt"
	"io"
	"math"

	"netan/pkg/netlist"
	"netan/pkg/result"
	"netan/pkg/util"
)

const (
	widthLimit  = 200
	heightLimit = 100
)

// Plotter renders waveforms as character art on a fixed canvas. All
// series of one .plot card share the canvas and the value range.
type Plotter struct {
	Width  int
	Height int
}

func NewPlotter(width, height int) *Plotter {
	if width <= 0 {
		width = 120
	}
	if height <= 0 {
		height = 30
	}
	if width > widthLimit {
		width = widthLimit
	}
	if height > heightLimit {
		height = heightLimit
	}
	return &Plotter{Width: width, Height: height}
}

func initCanvas(width, height int) [][]byte {
	canvas := make([][]byte, height)
	for i := 0; i < height-1; i++ {
		line := make([]byte, width)
		for j := range line {
			line[j] = ' '
		}
		line[0] = '|'
		canvas[i] = line
	}
	axis := make([]byte, width)
	for j := range axis {
		axis[j] = '-'
	}
	axis[0] = '|'
	canvas[height-1] = axis
	return canvas
}

func plotData(wf result.Waveform, max, min float64, canvas [][]byte, marker byte) {
	width := len(canvas[0]) - 1
	height := len(canvas) - 2
	if len(wf.Points) == 0 {
		return
	}
	dataScale := (max - min) / float64(height)
	endTime := wf.Points[len(wf.Points)-1].Time
	timeScale := endTime / float64(width)
	for _, point := range wf.Points {
		y := height / 2
		if dataScale > 0 {
			y = int((point.Value - min) / dataScale)
		}
		y = height - y
		x := 0
		if timeScale > 0 {
			x = int(point.Time / timeScale)
		}
		if y < 0 {
			y = 0
		}
		if y >= len(canvas) {
			y = len(canvas) - 1
		}
		if x < 1 {
			x = 1
		}
		if x >= len(canvas[0]) {
			x = len(canvas[0]) - 1
		}
		canvas[y][x] = marker
	}
}

type series struct {
	legend string
	wf     result.Waveform
}

// collect gathers the waveforms named by the plot card; missing points
// are reported and skipped.
func collect(res *result.Store, pd netlist.PlotData, out io.Writer) ([]series, float64, float64) {
	max := -math.MaxFloat64
	min := math.MaxFloat64
	var all []series
	for _, nodeName := range pd.Nodes {
		wf, wfMax, wfMin, err := res.NodeWaveform(nodeName)
		if err != nil {
			fmt.Fprintf(out, "Plot ERROR: %v\n", err)
			continue
		}
		max = math.Max(max, wfMax)
		min = math.Min(min, wfMin)
		all = append(all, series{legend: "V(" + nodeName + ")", wf: wf})
	}
	for _, devName := range pd.Devices {
		wf, wfMax, wfMin, err := res.DeviceWaveform(devName)
		if err != nil {
			fmt.Fprintf(out, "Plot ERROR: %v\n", err)
			continue
		}
		max = math.Max(max, wfMax)
		min = math.Min(min, wfMin)
		all = append(all, series{legend: "I(" + devName + ")", wf: wf})
	}
	return all, max, min
}

// Plot renders one .plot card to the writer.
func (p *Plotter) Plot(res *result.Store, pd netlist.PlotData, out io.Writer) {
	all, max, min := collect(res, pd, out)
	if len(all) == 0 {
		return
	}
	markers := []byte{'*', 'o', 'x', '+'}
	canvas := initCanvas(p.Width, p.Height)
	for i, s := range all {
		plotData(s.wf, max, min, canvas, markers[i%len(markers)])
	}
	fmt.Fprintf(out, "Analysis %s, %s to %s, %s to %s\n",
		res.Name(),
		util.FormatValueFactor(0, "s"), util.FormatValueFactor(res.CurrentTime(), "s"),
		util.FormatValueFactor(min, ""), util.FormatValueFactor(max, ""))
	for i, s := range all {
		fmt.Fprintf(out, "  %c: %s\n", markers[i%len(markers)], s.legend)
	}
	for _, line := range canvas {
		fmt.Fprintln(out, string(line))
	}
}
