package result

import (
	"sort"

	"netan/pkg/circuit"
	"netan/pkg/device"
)

// InvalidRow marks rows excluded from the MNA system (the ground node,
// devices without a branch current).
const InvalidRow = -1

// IndexMap is the bijection between node/device ids and rows of the
// MNA system. Every non-ground node gets a row in id order, followed by
// one row per branch device.
type IndexMap struct {
	dimension int
	nodeIndex []int
	devIndex  []int
}

// branchDevices lists devices that own a current unknown: the
// voltage-defined kinds plus the resolved sample branch of every
// current-controlled source, deduplicated.
func branchDevices(ckt *circuit.Circuit) []int {
	var devIDs []int
	for _, dev := range ckt.Devices() {
		if device.NeedsBranch(dev) {
			devIDs = append(devIDs, dev.ID)
		}
		if device.SamplesCurrent(dev) && dev.SampleDevice != device.InvalidID {
			devIDs = append(devIDs, dev.SampleDevice)
		}
	}
	sort.Ints(devIDs)
	uniq := devIDs[:0]
	for i, id := range devIDs {
		if i == 0 || id != devIDs[i-1] {
			uniq = append(uniq, id)
		}
	}
	return uniq
}

func NewIndexMap(ckt *circuit.Circuit) IndexMap {
	m := IndexMap{
		nodeIndex: make([]int, ckt.NodeCount()),
		devIndex:  make([]int, ckt.DeviceCount()),
	}
	for i := range m.nodeIndex {
		m.nodeIndex[i] = InvalidRow
	}
	for i := range m.devIndex {
		m.devIndex[i] = InvalidRow
	}
	index := 0
	for _, node := range ckt.Nodes() {
		if node.IsGround {
			continue
		}
		m.nodeIndex[node.ID] = index
		index++
	}
	for _, id := range branchDevices(ckt) {
		m.devIndex[id] = index
		index++
	}
	m.dimension = index
	return m
}

// Dimension is the size of the unknown vector x in Ax=b.
func (m IndexMap) Dimension() int { return m.dimension }

// NodeRow returns the matrix row of a node voltage, or InvalidRow for
// the ground node.
func (m IndexMap) NodeRow(nodeID int) int {
	if nodeID < 0 || nodeID >= len(m.nodeIndex) {
		return InvalidRow
	}
	return m.nodeIndex[nodeID]
}

// DevRow returns the matrix row of a branch current, or InvalidRow for
// devices without one.
func (m IndexMap) DevRow(devID int) int {
	if devID < 0 || devID >= len(m.devIndex) {
		return InvalidRow
	}
	return m.devIndex[devID]
}
