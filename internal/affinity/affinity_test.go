package affinity

import (
	"sync"
	"testing"
)

func TestUnassignedNeverMatches(t *testing.T) {
	var b Binding
	if b.Current() {
		t.Fatal("unassigned binding must not match")
	}
	if b.Assigned() {
		t.Fatal("zero binding reported as assigned")
	}
}

func TestAssignMatchesOwnerOnly(t *testing.T) {
	var b Binding
	b.Assign()
	defer b.Release()

	if !b.Current() {
		t.Fatal("owner thread must match")
	}
	if !Precise {
		t.Skip("thread identity not tracked on this platform")
	}

	var wg sync.WaitGroup
	var other bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		// The test goroutine holds its thread locked, so this runs elsewhere.
		other = b.Current()
	}()
	wg.Wait()
	if other {
		t.Fatal("foreign thread must not match")
	}
}

func TestReleaseClearsOwner(t *testing.T) {
	var b Binding
	b.Assign()
	b.Release()
	if b.Current() || b.Thread() != 0 {
		t.Fatal("released binding must not match")
	}
}
