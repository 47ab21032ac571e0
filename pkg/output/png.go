package output

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"netan/pkg/netlist"
	"netan/pkg/result"
)

func plotterXYs(wf result.Waveform) plotter.XYs {
	xys := make(plotter.XYs, len(wf.Points))
	for i, point := range wf.Points {
		xys[i].X = point.Time
		xys[i].Y = point.Value
	}
	return xys
}

// WritePNG renders the plot cards of one analysis into a PNG image.
func WritePNG(res *result.Store, plots []netlist.PlotData, outFile string) error {
	p := plot.New()
	p.Title.Text = "analysis " + res.Name()
	p.X.Label.Text = "time (s)"
	p.Legend.Top = true

	count := 0
	addSeries := func(legend string, wf result.Waveform) error {
		line, err := plotter.NewLine(plotterXYs(wf))
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(count)
		p.Add(line)
		p.Legend.Add(legend, line)
		count++
		return nil
	}

	for _, pd := range plots {
		if pd.SimName != res.Name() {
			continue
		}
		for _, nodeName := range pd.Nodes {
			wf, _, _, err := res.NodeWaveform(nodeName)
			if err != nil {
				return err
			}
			if err := addSeries("V("+nodeName+")", wf); err != nil {
				return err
			}
		}
		for _, devName := range pd.Devices {
			wf, _, _, err := res.DeviceWaveform(devName)
			if err != nil {
				return err
			}
			if err := addSeries("I("+devName+")", wf); err != nil {
				return err
			}
		}
	}
	if count == 0 {
		return fmt.Errorf("no plot data registered for analysis %s", res.Name())
	}
	return p.Save(10*vg.Inch, 5*vg.Inch, outFile)
}
