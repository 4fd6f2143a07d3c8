package observer

import "testing"

func TestRegistryInvocationOrder(t *testing.T) {
	t.Parallel()

	var r Registry[func()]
	var got []int
	r.Add(func() { got = append(got, 1) })
	r.Add(func() { got = append(got, 2) })
	r.Add(func() { got = append(got, 3) })

	for _, fn := range r.Snapshot() {
		fn()
	}

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected invocation order: %v", got)
	}
}

func TestRegistryUnsubscribeByHandle(t *testing.T) {
	t.Parallel()

	var r Registry[func()]
	var got []int
	shared := func() { got = append(got, 0) }

	// Two registrations of the same function value get distinct handles.
	unsubFirst := r.Add(shared)
	r.Add(shared)
	unsubFirst()

	if r.Len() != 1 {
		t.Fatalf("expected one remaining handler, got %d", r.Len())
	}
	for _, fn := range r.Snapshot() {
		fn()
	}
	if len(got) != 1 {
		t.Fatalf("expected single invocation, got %d", len(got))
	}
}

func TestRegistryUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	var r Registry[func()]
	unsub := r.Add(func() {})
	r.Add(func() {})
	unsub()
	unsub()

	if r.Len() != 1 {
		t.Fatalf("expected one remaining handler, got %d", r.Len())
	}
}
