package common

// Reset codes are drawn uniformly from this closed range.
const (
	ResetCodeMin = 1000
	ResetCodeMax = 9999
)
