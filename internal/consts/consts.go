package consts

const (
	NewtonMaxIter = 20   // Newton-Raphson iteration cap
	NewtonXTol    = 1e-6 // relative step tolerance
	NewtonFDStep  = 1e-6 // one-sided finite difference step

	DefaultPZOrder = 4 // approximation order when .pz gives none
)
