package circuit

import (
	"fmt"
	"math"
	"sort"

	"netan/pkg/device"
	"netan/pkg/netlist"
)

// Circuit is the immutable device/node graph built once from a parsed
// deck. Node id 0 is always ground.
type Circuit struct {
	name          string
	nodes         []device.Node
	devices       []device.Device
	pwlData       []device.PWLValue
	groundNodeID  int
	scalingFactor float64
	warnings      []string
}

func (c *Circuit) warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// Build constructs the circuit graph: ground selection, node id
// assignment, device resolution and the CCCS/CCVS sample-branch fix-up.
// Devices referencing unknown nodes are dropped with a warning.
func Build(deck *netlist.Deck) *Circuit {
	ckt := &Circuit{
		name:         deck.Title,
		pwlData:      deck.PWLData,
		groundNodeID: 0,
	}

	// Count node incidence in first-appearance order.
	var nodeNames []string
	incidence := make(map[string]int)
	for _, dev := range deck.Devices {
		for _, n := range []string{dev.PosNode, dev.NegNode} {
			if _, seen := incidence[n]; !seen {
				nodeNames = append(nodeNames, n)
			}
			incidence[n]++
		}
	}

	groundName := deck.GroundNet
	if groundName == "" {
		groundName = pickGround(nodeNames, incidence)
	}

	nodeIDs := make(map[string]int)
	ckt.nodes = append(ckt.nodes, device.Node{
		ID:       0,
		Name:     groundName,
		IsGround: true,
	})
	nodeIDs[groundName] = 0
	for _, name := range nodeNames {
		if name == groundName {
			continue
		}
		id := len(ckt.nodes)
		ckt.nodes = append(ckt.nodes, device.Node{ID: id, Name: name})
		nodeIDs[name] = id
	}

	for _, pdev := range deck.Devices {
		dev, err := ckt.createDevice(pdev, nodeIDs)
		if err != nil {
			ckt.warnf("%v", err)
			continue
		}
		dev.ID = len(ckt.devices)
		ckt.devices = append(ckt.devices, dev)
		ckt.nodes[dev.PosNode].Connections = append(ckt.nodes[dev.PosNode].Connections, dev.ID)
		ckt.nodes[dev.NegNode].Connections = append(ckt.nodes[dev.NegNode].Connections, dev.ID)
	}

	// Fix-up pass: resolve the branch a current-controlled source samples,
	// and collect the smallest reactive value for s-domain scaling.
	smallestDynamic := math.MaxFloat64
	for i := range ckt.devices {
		dev := &ckt.devices[i]
		if device.SamplesCurrent(*dev) {
			sample := ckt.findDeviceOnEdge(dev.PosSampleNode, dev.NegSampleNode)
			if sample == device.InvalidID {
				ckt.warnf("cannot find sampling branch with %s and %s of current controlled device %s",
					ckt.nodes[dev.PosSampleNode].Name, ckt.nodes[dev.NegSampleNode].Name, dev.Name)
			}
			dev.SampleDevice = sample
		}
		if device.IsDynamic(*dev) && dev.Value < smallestDynamic {
			smallestDynamic = dev.Value
		}
	}

	ckt.scalingFactor = 1
	if smallestDynamic < math.MaxFloat64 && smallestDynamic > 0 {
		s := math.Pow(10, -math.Floor(math.Log10(smallestDynamic))-3)
		if s > 1 {
			ckt.scalingFactor = s
		}
	}

	return ckt
}

// pickGround selects the node with the highest incidence, breaking ties
// by lexicographic name.
func pickGround(names []string, incidence map[string]int) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	maxCount := 0
	ground := ""
	for _, name := range sorted {
		if incidence[name] > maxCount {
			maxCount = incidence[name]
			ground = name
		}
	}
	return ground
}

func (c *Circuit) createDevice(pdev netlist.ParsedDevice, nodeIDs map[string]int) (device.Device, error) {
	dev := device.Device{
		Name:          pdev.Name,
		Type:          pdev.Type,
		IsPWL:         pdev.IsPWL,
		Value:         pdev.Value,
		PWLData:       pdev.PWLData,
		PosSampleNode: device.InvalidID,
		NegSampleNode: device.InvalidID,
		SampleDevice:  device.InvalidID,
	}
	var ok bool
	if dev.PosNode, ok = nodeIDs[pdev.PosNode]; !ok {
		return dev, fmt.Errorf("cannot find node %q referenced by device %s", pdev.PosNode, pdev.Name)
	}
	if dev.NegNode, ok = nodeIDs[pdev.NegNode]; !ok {
		return dev, fmt.Errorf("cannot find node %q referenced by device %s", pdev.NegNode, pdev.Name)
	}
	if device.HasSampleNodes(dev) {
		if dev.PosSampleNode, ok = nodeIDs[pdev.PosSampleNode]; !ok {
			return dev, fmt.Errorf("cannot find node %q referenced by device %s", pdev.PosSampleNode, pdev.Name)
		}
		if dev.NegSampleNode, ok = nodeIDs[pdev.NegSampleNode]; !ok {
			return dev, fmt.Errorf("cannot find node %q referenced by device %s", pdev.NegSampleNode, pdev.Name)
		}
	}
	return dev, nil
}

// findDeviceOnEdge returns the device common to both nodes' connection
// lists, or InvalidID.
func (c *Circuit) findDeviceOnEdge(nodeID1, nodeID2 int) int {
	for _, dev1 := range c.nodes[nodeID1].Connections {
		for _, dev2 := range c.nodes[nodeID2].Connections {
			if dev1 == dev2 {
				return dev1
			}
		}
	}
	return device.InvalidID
}

func (c *Circuit) Name() string { return c.name }

func (c *Circuit) Nodes() []device.Node { return c.nodes }

func (c *Circuit) Devices() []device.Device { return c.devices }

func (c *Circuit) NodeCount() int { return len(c.nodes) }

func (c *Circuit) DeviceCount() int { return len(c.devices) }

func (c *Circuit) GroundNodeID() int { return c.groundNodeID }

func (c *Circuit) Warnings() []string { return c.warnings }

// ScalingFactor is the fixed rescaling of reactive element values used
// during s-domain stamping. Pole-zero consumers de-scale with it.
func (c *Circuit) ScalingFactor() float64 { return c.scalingFactor }

func (c *Circuit) IsGroundNode(nodeID int) bool {
	return nodeID == c.groundNodeID
}

func (c *Circuit) Node(nodeID int) device.Node {
	return c.nodes[nodeID]
}

func (c *Circuit) Device(devID int) device.Device {
	return c.devices[devID]
}

// PWL returns the stimulus table of a PWL-valued device, or an empty
// table for scalar devices.
func (c *Circuit) PWL(dev device.Device) device.PWLValue {
	if !dev.IsPWL || dev.PWLData < 0 || dev.PWLData >= len(c.pwlData) {
		return device.PWLValue{}
	}
	return c.pwlData[dev.PWLData]
}

// FindNodeByName is a linear scan; lookups are rare relative to solves.
func (c *Circuit) FindNodeByName(name string) (device.Node, bool) {
	for _, node := range c.nodes {
		if node.Name == name {
			return node, true
		}
	}
	return device.Node{ID: device.InvalidID}, false
}

func (c *Circuit) FindDeviceByName(name string) (device.Device, bool) {
	for _, dev := range c.devices {
		if dev.Name == name {
			return dev, true
		}
	}
	return device.Device{ID: device.InvalidID}, false
}
