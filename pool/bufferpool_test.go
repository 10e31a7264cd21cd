package pool

import "testing"

func TestBufferPoolManagerRecyclesBySizeClass(t *testing.T) {
	m := NewBufferPoolManager()

	buf := m.Get(100, -1)
	if len(buf) != 100 {
		t.Fatalf("len = %d, want 100", len(buf))
	}
	if cap(buf) < 100 {
		t.Fatalf("cap = %d, want >= 100", cap(buf))
	}
	firstCap := cap(buf)
	m.Put(buf, -1)

	buf2 := m.Get(100, -1)
	if cap(buf2) != firstCap {
		t.Fatalf("expected recycled buffer of same class, cap = %d want %d", cap(buf2), firstCap)
	}
}

func TestSizeClassUpperBound(t *testing.T) {
	cases := []struct{ size, want int }{
		{0, 1024},
		{1024, 1024},
		{1025, 2048},
		{2 * 1024 * 1024, 1024 * 1024},
	}
	for _, c := range cases {
		if got := sizeClassUpperBound(c.size); got != c.want {
			t.Errorf("sizeClassUpperBound(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestDefaultPoolRoundTrip(t *testing.T) {
	p := DefaultPool()
	buf := p.Get(4096)
	if len(buf) != 4096 {
		t.Fatalf("len = %d, want 4096", len(buf))
	}
	p.Put(buf)
}
