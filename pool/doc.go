// Package pool provides a size-classed, NUMA-segmented byte-slice pool
// that recycles buffers of the same size class instead of allocating
// them fresh. No other package in this module imports it: the parser
// allocates each request buffer with make and does not return it here.
package pool
