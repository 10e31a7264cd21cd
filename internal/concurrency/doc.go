// Package concurrency provides the DNS resolver's fixed worker pool
// (Executor, backed by github.com/eapache/queue) and a generic
// single-producer/single-consumer ring buffer that package pool uses as
// its recycle list.
package concurrency
