// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFunc(t *testing.T) {
	c := Fake(epoch)
	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "late") })
	c.AfterFunc(time.Second, func() { order = append(order, "early") })
	c.AfterFunc(time.Second, func() { order = append(order, "early-second") })

	c.Advance(500 * time.Millisecond)
	if len(order) != 0 {
		t.Fatalf("fired before deadline: %v", order)
	}

	c.Advance(2 * time.Second)
	want := []string{"early", "early-second", "late"}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after all fired", c.Pending())
	}
}

func TestFakeStop(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("Stop() on armed timer returned false")
	}
	if timer.Stop() {
		t.Error("second Stop() returned true")
	}
	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeAfter(t *testing.T) {
	c := Fake(epoch)
	channel := c.After(time.Second)
	select {
	case <-channel:
		t.Fatal("After delivered before Advance")
	default:
	}
	c.Advance(time.Second)
	select {
	case got := <-channel:
		if !got.Equal(epoch.Add(time.Second)) {
			t.Errorf("delivered %v, want %v", got, epoch.Add(time.Second))
		}
	default:
		t.Fatal("After did not deliver at deadline")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()
	c.WaitForTimers(1)
	c.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine never woke")
	}
}

func TestFakeCallbackSchedulesRelativeToAdvancedTime(t *testing.T) {
	c := Fake(epoch)
	count := 0
	var rearm func()
	rearm = func() {
		count++
		c.AfterFunc(time.Second, rearm)
	}
	c.AfterFunc(time.Second, rearm)

	// The clock is already at the target when callbacks run, so a
	// re-armed timer lands beyond this Advance.
	c.Advance(10 * time.Second)
	if count != 1 {
		t.Fatalf("callback ran %d times, want 1", count)
	}
	c.Advance(time.Second)
	if count != 2 {
		t.Errorf("callback ran %d times after second Advance, want 2", count)
	}
}
