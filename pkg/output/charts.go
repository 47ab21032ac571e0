package output

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"netan/pkg/netlist"
	"netan/pkg/result"
)

func newWaveformLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:        "value",
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
	)
	return line
}

func lineData(wf result.Waveform) []opts.LineData {
	data := make([]opts.LineData, len(wf.Points))
	for i, p := range wf.Points {
		data[i] = opts.LineData{Value: []any{p.Time, p.Value}}
	}
	return data
}

// WriteHTML renders the plot cards of one analysis as an interactive
// chart page: one voltage chart and one current chart.
func WriteHTML(res *result.Store, plots []netlist.PlotData, outFile string) error {
	lineV := newWaveformLine("Node voltages", "analysis "+res.Name())
	lineI := newWaveformLine("Branch currents", "analysis "+res.Name())
	haveV, haveI := false, false
	for _, pd := range plots {
		if pd.SimName != res.Name() {
			continue
		}
		for _, nodeName := range pd.Nodes {
			wf, _, _, err := res.NodeWaveform(nodeName)
			if err != nil {
				return err
			}
			lineV.AddSeries("V("+nodeName+")", lineData(wf))
			haveV = true
		}
		for _, devName := range pd.Devices {
			wf, _, _, err := res.DeviceWaveform(devName)
			if err != nil {
				return err
			}
			lineI.AddSeries("I("+devName+")", lineData(wf))
			haveI = true
		}
	}
	if !haveV && !haveI {
		return fmt.Errorf("no plot data registered for analysis %s", res.Name())
	}

	page := components.NewPage()
	if haveV {
		page.AddCharts(lineV)
	}
	if haveI {
		page.AddCharts(lineI)
	}
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("creating %s: %v", outFile, err)
	}
	defer f.Close()
	return page.Render(f)
}
