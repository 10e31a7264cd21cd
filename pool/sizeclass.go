package pool

// sizeClasses are the power-of-two buffer sizes requests round up to.
// A CONNECT request buffer is at most a few KiB (spec's
// max_request_size_bytes defaults to 1024); the table still spans up to
// 1 MiB so the same pool machinery serves larger configurations too.
// Requests above 1 MiB map to the 1 MiB class, whose slabPool allocates
// them fresh.
var sizeClasses = [...]int{
	1 * 1024,
	2 * 1024,
	4 * 1024,
	8 * 1024,
	16 * 1024,
	32 * 1024,
	64 * 1024,
	128 * 1024,
	256 * 1024,
	1024 * 1024,
}

// sizeClassUpperBound returns the smallest class that covers size, or
// the largest class if size exceeds them all.
func sizeClassUpperBound(size int) int {
	for _, c := range sizeClasses {
		if size <= c {
			return c
		}
	}
	return sizeClasses[len(sizeClasses)-1]
}
