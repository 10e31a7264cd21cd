// Package forwarder splices bytes bidirectionally between a client and a
// server fd using a pair of kernel pipes as zero-copy staging buffers.
// Each side is registered edge-triggered with the forwarder's reactor;
// either side reading EOF or writing EOF triggers a half-shutdown, and
// both sides tear down together on error or idle timeout.
package forwarder
