package analysis

import "netan/pkg/result"

// Analysis is one run over a circuit producing a result history.
type Analysis interface {
	Run() error
	Result() *result.Store
}

var (
	_ Analysis = (*Transient)(nil)
	_ Analysis = (*PoleZero)(nil)
)
