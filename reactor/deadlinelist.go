package reactor

// deadlineList is an intrusive doubly linked list of registrations
// ordered by idle deadline: O(1) tail append, O(1) removal from any
// position. Refresh always re-appends at the tail, so the list stays
// sorted as long as every registration's timeout is the same fixed
// duration (true within one reactor) — appends are monotonic in time.
// Ties inherit insertion order (FIFO), matching spec §4.1.
type deadlineList struct {
	head, tail *registration
}

func (l *deadlineList) pushTail(r *registration) {
	r.prev = l.tail
	r.next = nil
	if l.tail != nil {
		l.tail.next = r
	} else {
		l.head = r
	}
	l.tail = r
}

func (l *deadlineList) erase(r *registration) {
	if r.prev != nil {
		r.prev.next = r.next
	} else if l.head == r {
		l.head = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	} else if l.tail == r {
		l.tail = r.prev
	}
	r.prev, r.next = nil, nil
}
