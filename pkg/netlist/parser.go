package netlist

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"netan/internal/consts"
	"netan/pkg/device"
)

type AnalysisType int

const (
	AnalysisNone AnalysisType = iota
	AnalysisTran
	AnalysisPZ
	AnalysisTF
)

type AnalysisParam struct {
	Type    AnalysisType
	Name    string
	SimTick float64 // transient
	SimTime float64
	Method  device.IntegrateMethod
	Order   int // pole-zero
	InDev   string
	OutNode string
}

// ParsedDevice is the parser-side device record. Node references are
// still names; the circuit builder resolves them to ids.
type ParsedDevice struct {
	Name          string
	PosNode       string
	NegNode       string
	PosSampleNode string
	NegSampleNode string
	Type          device.Type
	IsPWL         bool
	Value         float64
	PWLData       int
}

type MeasurePoint struct {
	SimName      string
	Label        string
	TimeDelay    float64
	Trigger      string
	TriggerType  device.ResultType
	TriggerValue float64
	Target       string
	TargetType   device.ResultType
	TargetValue  float64
}

type PlotData struct {
	SimName string
	Nodes   []string
	Devices []string
}

// Deck is everything a netlist provides: devices, PWL tables and the
// analysis/measure/plot cards.
type Deck struct {
	Title     string
	Devices   []ParsedDevice
	PWLData   []device.PWLValue
	Analyses  []AnalysisParam
	Measures  []MeasurePoint
	Plots     []PlotData
	GroundNet string
	SaveData  bool
	Warnings  []string
}

func (d *Deck) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// analysis returns the parameter block of the given name, creating it
// on first use so .option and .tran cards can arrive in either order.
func (d *Deck) analysis(name string) *AnalysisParam {
	for i := range d.Analyses {
		if d.Analyses[i].Name == name {
			return &d.Analyses[i]
		}
	}
	d.Analyses = append(d.Analyses, AnalysisParam{Name: name, Order: 0})
	return &d.Analyses[len(d.Analyses)-1]
}

func Parse(input string) (*Deck, error) {
	deck := &Deck{}
	scanner := bufio.NewScanner(strings.NewReader(input))

	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			if strings.HasPrefix(line, "*") {
				deck.Title = strings.TrimSpace(strings.TrimPrefix(line, "*"))
				continue
			}
		}
		if len(line) == 0 || strings.HasPrefix(line, "*") {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if err := deck.parseCommand(line); err != nil {
				return nil, err
			}
			continue
		}
		if err := deck.parseDevice(line); err != nil {
			// Construction errors drop the device and keep going.
			deck.warnf("%v", err)
		}
	}

	return deck, nil
}

func (d *Deck) parseDevice(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fmt.Errorf("invalid element format: %s", line)
	}
	name := fields[0]
	var devType device.Type
	switch strings.ToUpper(name[:1]) {
	case "R":
		devType = device.Resistor
	case "C":
		devType = device.Capacitor
	case "L":
		devType = device.Inductor
	case "V":
		devType = device.VoltageSource
	case "I":
		devType = device.CurrentSource
	case "E":
		devType = device.VCVS
	case "F":
		devType = device.CCCS
	case "G":
		devType = device.VCCS
	case "H":
		devType = device.CCVS
	default:
		return fmt.Errorf("unsupported device type in line: %s", line)
	}

	switch devType {
	case device.Resistor, device.Capacitor, device.Inductor:
		if len(fields) != 4 {
			return fmt.Errorf("device %s needs 2 nodes and a value", name)
		}
		value, err := ParseValue(fields[3])
		if err != nil {
			return fmt.Errorf("device %s: %v", name, err)
		}
		d.Devices = append(d.Devices, ParsedDevice{
			Name: name, Type: devType,
			PosNode: fields[1], NegNode: fields[2],
			Value: value, PWLData: -1,
		})

	case device.VoltageSource, device.CurrentSource:
		rest := strings.Join(fields[3:], " ")
		if isPWL(rest) {
			pwl, err := parsePWL(rest)
			if err != nil {
				return fmt.Errorf("device %s: %v", name, err)
			}
			d.PWLData = append(d.PWLData, pwl)
			d.Devices = append(d.Devices, ParsedDevice{
				Name: name, Type: devType,
				PosNode: fields[1], NegNode: fields[2],
				IsPWL: true, PWLData: len(d.PWLData) - 1,
			})
			return nil
		}
		// Optional leading DC keyword
		valueStr := fields[3]
		if strings.EqualFold(valueStr, "dc") {
			if len(fields) < 5 {
				return fmt.Errorf("device %s: missing DC value", name)
			}
			valueStr = fields[4]
		}
		value, err := ParseValue(valueStr)
		if err != nil {
			return fmt.Errorf("device %s: %v", name, err)
		}
		d.Devices = append(d.Devices, ParsedDevice{
			Name: name, Type: devType,
			PosNode: fields[1], NegNode: fields[2],
			Value: value, PWLData: -1,
		})

	case device.VCVS, device.VCCS, device.CCCS, device.CCVS:
		if len(fields) != 6 {
			return fmt.Errorf("controlled source %s needs 4 nodes and a gain", name)
		}
		value, err := ParseValue(fields[5])
		if err != nil {
			return fmt.Errorf("device %s: %v", name, err)
		}
		d.Devices = append(d.Devices, ParsedDevice{
			Name: name, Type: devType,
			PosNode: fields[1], NegNode: fields[2],
			PosSampleNode: fields[3], NegSampleNode: fields[4],
			Value: value, PWLData: -1,
		})
	}
	return nil
}

func isPWL(s string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "PWL")
}

func parsePWL(s string) (device.PWLValue, error) {
	s = strings.TrimSpace(s)
	s = s[3:] // strip "PWL"
	s = strings.ReplaceAll(s, "(", " ")
	s = strings.ReplaceAll(s, ")", " ")
	words := strings.Fields(s)
	if len(words) < 2 || len(words)%2 != 0 {
		return device.PWLValue{}, fmt.Errorf("PWL needs time-value pairs")
	}
	n := len(words) / 2
	pwl := device.PWLValue{
		Times:  make([]float64, n),
		Values: make([]float64, n),
	}
	var err error
	for i := 0; i < n; i++ {
		if pwl.Times[i], err = ParseValue(words[2*i]); err != nil {
			return device.PWLValue{}, fmt.Errorf("invalid PWL time[%d]: %v", i, err)
		}
		if pwl.Values[i], err = ParseValue(words[2*i+1]); err != nil {
			return device.PWLValue{}, fmt.Errorf("invalid PWL value[%d]: %v", i, err)
		}
		if i > 0 && pwl.Times[i] <= pwl.Times[i-1] {
			return device.PWLValue{}, fmt.Errorf("PWL time points must be strictly increasing")
		}
	}
	return pwl, nil
}

func (d *Deck) parseCommand(line string) error {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	switch cmd {
	case ".gnd":
		if len(fields) < 2 {
			return fmt.Errorf(".gnd needs a net name")
		}
		d.GroundNet = fields[1]

	case ".tran":
		name := "tran"
		index := 1
		if len(fields) == 4 {
			name = fields[1]
			index = 2
		} else if len(fields) != 3 {
			return fmt.Errorf("insufficient tran parameters, need tick and stop time")
		}
		tick, err := ParseValue(fields[index])
		if err != nil {
			return fmt.Errorf("invalid simTick: %v", err)
		}
		stop, err := ParseValue(fields[index+1])
		if err != nil {
			return fmt.Errorf("invalid simEnd: %v", err)
		}
		param := d.analysis(name)
		if param.Type != AnalysisNone && param.Type != AnalysisTran {
			return fmt.Errorf("analysis %q already declared with another type", name)
		}
		param.Type = AnalysisTran
		param.SimTick = tick
		param.SimTime = stop

	case ".pz", ".tf":
		analysisType := AnalysisPZ
		name := "pz"
		if cmd == ".tf" {
			analysisType = AnalysisTF
			name = "tf"
		}
		index := 1
		if len(fields) == 4 {
			name = fields[1]
			index = 2
		} else if len(fields) != 3 {
			return fmt.Errorf("%s needs V(out) and I(in)", cmd)
		}
		outNode, ok1 := nameInParens(fields[index], "V")
		inDev, ok2 := nameInParens(fields[index+1], "I")
		if !ok1 || !ok2 {
			return fmt.Errorf("invalid syntax in line %q", line)
		}
		param := d.analysis(name)
		if param.Type != AnalysisNone && param.Type != analysisType {
			return fmt.Errorf("analysis %q already declared with another type", name)
		}
		param.Type = analysisType
		param.OutNode = outNode
		param.InDev = inDev
		if param.Order == 0 {
			param.Order = consts.DefaultPZOrder
		}

	case ".option":
		d.parseOption(line)

	case ".measure":
		if err := d.parseMeasure(fields); err != nil {
			d.warnf("%v", err)
		}

	case ".plot":
		if err := d.parsePlot(fields); err != nil {
			d.warnf("%v", err)
		}

	case ".end":
		// nothing to do

	default:
		d.warnf("command line %q is ignored", line)
	}
	return nil
}

// parseOption handles ".option [name] key=value ...". Unknown keys warn
// and are skipped; an unknown integration method falls back to gear2.
func (d *Deck) parseOption(line string) {
	words := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '='
	})
	name := ""
	start := 1
	rawFields := strings.Fields(line)
	if len(rawFields) > 1 && !strings.Contains(rawFields[1], "=") {
		name = words[1]
		start = 2
	}
	for i := start; i < len(words); i++ {
		switch strings.ToLower(words[i]) {
		case "method":
			i++
			if i >= len(words) {
				continue
			}
			method := device.Gear2
			switch strings.ToLower(words[i]) {
			case "gear2":
				method = device.Gear2
			case "euler":
				method = device.BackwardEuler
			case "trap":
				method = device.Trapezoidal
			default:
				d.warnf("integrate method %q is not supported, using default gear2", words[i])
			}
			simName := name
			if simName == "" {
				simName = "tran"
			}
			d.analysis(simName).Method = method
		case "post":
			i++
			if i < len(words) && words[i] == "2" {
				d.SaveData = true
			} else {
				d.warnf("value provided to post is not supported and ignored")
			}
		case "pzorder":
			i++
			if i >= len(words) {
				continue
			}
			order, err := strconv.Atoi(words[i])
			if err != nil || order < 1 {
				d.warnf("invalid pzorder %q ignored", words[i])
				continue
			}
			simName := name
			if simName == "" {
				simName = "pz"
			}
			d.analysis(simName).Order = order
		default:
			d.warnf("option keyword %q is not supported and ignored", words[i])
		}
	}
}

// parseMeasure handles
// .measure <sim> <label> trig V(a)=x targ V(b)=y [td=t]
func (d *Deck) parseMeasure(fields []string) error {
	if len(fields) < 5 {
		return fmt.Errorf("insufficient .measure parameters")
	}
	mp := MeasurePoint{SimName: fields[1], Label: fields[2]}
	for i := 3; i < len(fields); i++ {
		word := strings.ToLower(fields[i])
		switch {
		case word == "trig":
			i++
			if i >= len(fields) {
				return fmt.Errorf(".measure %s: trig needs a level", mp.Label)
			}
			point, rtype, value, err := parseLevel(fields[i])
			if err != nil {
				return fmt.Errorf(".measure %s: %v", mp.Label, err)
			}
			mp.Trigger, mp.TriggerType, mp.TriggerValue = point, rtype, value
		case word == "targ":
			i++
			if i >= len(fields) {
				return fmt.Errorf(".measure %s: targ needs a level", mp.Label)
			}
			point, rtype, value, err := parseLevel(fields[i])
			if err != nil {
				return fmt.Errorf(".measure %s: %v", mp.Label, err)
			}
			mp.Target, mp.TargetType, mp.TargetValue = point, rtype, value
		case strings.HasPrefix(word, "td="):
			td, err := ParseValue(fields[i][3:])
			if err != nil {
				return fmt.Errorf(".measure %s: invalid td: %v", mp.Label, err)
			}
			mp.TimeDelay = td
		default:
			return fmt.Errorf(".measure %s: unexpected token %q", mp.Label, fields[i])
		}
	}
	if mp.Trigger == "" || mp.Target == "" {
		return fmt.Errorf(".measure %s needs both trig and targ", mp.Label)
	}
	d.Measures = append(d.Measures, mp)
	return nil
}

// parseLevel splits "V(node)=1.5" / "I(dev)=2m".
func parseLevel(s string) (point string, rtype device.ResultType, value float64, err error) {
	eq := strings.Index(s, "=")
	if eq < 0 {
		return "", 0, 0, fmt.Errorf("expected point=value, got %q", s)
	}
	var ok bool
	if point, ok = nameInParens(s[:eq], "V"); ok {
		rtype = device.Voltage
	} else if point, ok = nameInParens(s[:eq], "I"); ok {
		rtype = device.Current
	} else {
		return "", 0, 0, fmt.Errorf("expected V(...) or I(...), got %q", s[:eq])
	}
	value, err = ParseValue(s[eq+1:])
	return point, rtype, value, err
}

// parsePlot handles ".plot <sim> V(a) I(b) ...".
func (d *Deck) parsePlot(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("insufficient .plot parameters")
	}
	pd := PlotData{SimName: fields[1]}
	for _, f := range fields[2:] {
		if node, ok := nameInParens(f, "V"); ok {
			pd.Nodes = append(pd.Nodes, node)
		} else if dev, ok := nameInParens(f, "I"); ok {
			pd.Devices = append(pd.Devices, dev)
		} else {
			return fmt.Errorf("syntax error in .plot command: %q", f)
		}
	}
	d.Plots = append(d.Plots, pd)
	return nil
}

// nameInParens extracts "x" from "V(x)" with the given prefix letter.
func nameInParens(s, prefix string) (string, bool) {
	if len(s) < len(prefix)+2 {
		return "", false
	}
	if !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	rest := s[len(prefix):]
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

var valueRe = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)(meg|MEG|Meg|[TtGgXxKkMmUuNnPpFf])?[sSvVaA]?$`)

var unitMap = map[string]float64{
	"t":   1e12,
	"g":   1e9,
	"meg": 1e6,
	"x":   1e6,
	"k":   1e3,
	"m":   1e-3,
	"u":   1e-6,
	"n":   1e-9,
	"p":   1e-12,
	"f":   1e-15,
}

// ParseValue parses a number with an optional SPICE unit suffix.
// 1k -> 1000, 10u -> 1e-5, 2.5meg -> 2.5e6. A trailing unit letter
// (s, v, a) is ignored: "10ms" -> 1e-2.
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}
	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}
	if matches[2] != "" {
		num *= unitMap[strings.ToLower(matches[2])]
	}
	return num, nil
}
