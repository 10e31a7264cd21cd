package reactor

import (
	"time"

	"github.com/fenwick-systems/connectproxy/api"
)

// registration is the reactor-owned lifecycle record for one Handler:
// its socket, current readiness mask, idle deadline, deadline-list
// membership, reference count, and back-pointer to its reactor (nil iff
// not currently registered) — the Handler attributes named in spec §3.
type registration struct {
	fd         int
	handler    api.Handler
	mask       api.FDEventType
	edge       bool
	refcount   int
	deadline   time.Time
	prev, next *registration
	owner      *Reactor
}

var _ api.Registration = (*registration)(nil)

func (r *registration) IncRef() { r.refcount++ }

func (r *registration) DecRef() {
	r.refcount--
	if r.refcount == 0 && r.owner == nil {
		if f, ok := r.handler.(api.Finalizer); ok {
			f.Finalize()
		}
	}
}

func (r *registration) Refresh() {
	if r.owner == nil {
		return
	}
	r.owner.deadlines.erase(r)
	r.deadline = time.Now().Add(r.owner.timeout)
	r.owner.deadlines.pushTail(r)
}

func (r *registration) Modify(mask api.FDEventType) {
	if r.owner == nil {
		return
	}
	r.mask = mask
	r.owner.epollModify(r)
}

func (r *registration) Remove() {
	if r.owner == nil {
		return
	}
	owner := r.owner
	owner.epollRemove(r)
	owner.deadlines.erase(r)
	delete(owner.regs, r.fd)
	r.owner = nil
	r.DecRef()
}

func (r *registration) Registered() bool { return r.owner != nil }
