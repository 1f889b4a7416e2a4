package memory

import "golang.org/x/exp/constraints"

// roundUp rounds n up to the next multiple of granule. A zero granule
// leaves n unchanged.
func roundUp[T constraints.Unsigned](n, granule T) T {
	if granule == 0 {
		return n
	}
	return (n + granule - 1) / granule * granule
}
