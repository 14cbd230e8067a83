package timer

import "testing"

func TestFakeFiresExactlyOnceAtTick(t *testing.T) {
	fired := 0
	f := NewFake(func() { fired++ })
	f.TickIn(10)

	f.Advance(5)
	if fired != 0 {
		t.Fatalf("fired early at t=%d, count=%d", f.Now(), fired)
	}
	f.Advance(5)
	if fired != 1 {
		t.Fatalf("expected exactly one fire at tick boundary, got %d", fired)
	}
	f.Advance(100)
	if fired != 1 {
		t.Fatalf("expected no further fire without re-arming, got %d", fired)
	}
}

func TestFakeRearmAfterFire(t *testing.T) {
	fired := 0
	f := NewFake(func() { fired++ })
	f.TickIn(10)
	f.Advance(10)
	if fired != 1 {
		t.Fatalf("expected 1 fire, got %d", fired)
	}
	f.TickIn(10)
	f.Advance(10)
	if fired != 2 {
		t.Fatalf("expected 2 fires after re-arm, got %d", fired)
	}
}
