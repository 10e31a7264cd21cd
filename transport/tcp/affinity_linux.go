//go:build linux
// +build linux

package tcp

import (
	"log"
	"runtime"

	"github.com/fenwick-systems/connectproxy/affinity"
)

// PinAcceptLoop locks the calling goroutine to its OS thread and pins that
// thread to cpu. Call it once from the goroutine that will run Accept in a
// loop, before the first Accept call.
func PinAcceptLoop(cpu int) {
	runtime.LockOSThread()
	if err := affinity.SetAffinity(cpu); err != nil {
		log.Printf("tcp: failed to pin accept loop to cpu %d: %v", cpu, err)
	}
}
