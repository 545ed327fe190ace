/*
DESCRIPTION
  ttl_test.go tests the simulated TTL source and the debounce behavior of the
  pin source.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ttl

import (
	"bytes"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

func TestSim(t *testing.T) {
	const (
		period = 5 * time.Millisecond
		run    = 100 * time.Millisecond
	)

	s := NewSim(period)
	err := s.Start()
	if err != nil {
		t.Fatalf("could not start sim: %v", err)
	}

	time.Sleep(run)
	err = s.Stop()
	if err != nil {
		t.Fatalf("could not stop sim: %v", err)
	}

	var events []Event
	for ev := range s.Events() {
		events = append(events, ev)
	}

	if len(events) == 0 {
		t.Fatal("did not get any events from sim")
	}

	// Levels alternate, starting high.
	want := 1
	for i, ev := range events {
		if ev.Level != want {
			t.Errorf("event %d has level %d, want %d", i, ev.Level, want)
		}
		want ^= 1
	}

	// Times are non-decreasing.
	for i := 1; i < len(events); i++ {
		if events[i].Time.Before(events[i-1].Time) {
			t.Errorf("event times went backwards at event %d", i)
		}
	}
}

func TestSimStopTwice(t *testing.T) {
	s := NewSim(5 * time.Millisecond)
	err := s.Start()
	if err != nil {
		t.Fatalf("could not start sim: %v", err)
	}

	err = s.Stop()
	if err != nil {
		t.Fatalf("could not stop sim: %v", err)
	}

	err = s.Stop()
	if err != nil {
		t.Errorf("did not expect error from second stop: %v", err)
	}
}

func TestDebounced(t *testing.T) {
	const bounce = 50 * time.Millisecond

	l := logging.New(logging.Debug, &bytes.Buffer{}, true) // Discard logs.
	p := NewPin(17, bounce, l)

	base := time.Now()

	tests := []struct {
		at   time.Duration
		want bool
	}{
		{at: 0, want: true}, // First edge always accepted.
		{at: 10 * time.Millisecond, want: false},
		{at: 49 * time.Millisecond, want: false},
		{at: 51 * time.Millisecond, want: true},
		{at: 60 * time.Millisecond, want: false}, // Within bounce of the edge at 51ms.
		{at: 102 * time.Millisecond, want: true},
	}

	for i, test := range tests {
		got := p.debounced(base.Add(test.at))
		if got != test.want {
			t.Errorf("did not get expected result for edge %d at %v\nGot: %v\nWant: %v", i, test.at, got, test.want)
		}
	}
}

func TestDebouncedZeroBounce(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true)
	p := NewPin(17, 0, l)

	base := time.Now()
	for i := 0; i < 3; i++ {
		if !p.debounced(base.Add(time.Duration(i) * time.Microsecond)) {
			t.Errorf("edge %d was rejected with debounce disabled", i)
		}
	}
}
