// Package affinity pins the calling OS thread to a logical CPU. Callers
// must runtime.LockOSThread() first — affinity is meaningless against a
// goroutine the Go scheduler is still free to migrate.
package affinity

// SetAffinity pins the current OS thread to cpuID. Returns an error on
// platforms without a pinning implementation.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}
