/*
DESCRIPTION
  ttl.go provides sources of TTL synchronization events: a GPIO pin watcher
  for hardware capture, and a simulated source for bench runs and testing.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ttl provides observation of TTL synchronization pulses on a GPIO
// pin. Each edge of the pin produces an Event carrying the observed level
// and the time of observation; events are delivered in arrival order on a
// channel owned by the source.
package ttl

import (
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/kidoman/embd"
	"github.com/pkg/errors"
)

// Number of events that may be queued awaiting the consumer. The edge
// handler never blocks; if the queue is full the event is dropped with a
// warning logged.
const eventQueueLen = 256

// Event represents a single observed transition of the TTL input.
type Event struct {
	Time  time.Time
	Level int
}

// Source provides TTL events. Events are delivered on the channel returned
// by Events until Stop is called, after which the channel is closed.
type Source interface {
	Start() error
	Stop() error
	Events() <-chan Event
}

// Pin is a Source backed by a GPIO pin. Edges are detected in both
// directions with a software debounce period; edges arriving within the
// period of the previous accepted edge are discarded, matching the
// debounced edge detection of the acquisition hardware.
type Pin struct {
	num    int
	bounce time.Duration
	pin    embd.DigitalPin
	events chan Event
	last   time.Time
	log    logging.Logger
	mu     sync.Mutex
	open   bool
}

// NewPin returns a Pin watching the GPIO pin with the given BCM number.
func NewPin(num int, bounce time.Duration, l logging.Logger) *Pin {
	return &Pin{
		num:    num,
		bounce: bounce,
		events: make(chan Event, eventQueueLen),
		log:    l,
	}
}

// Start initialises GPIO, configures the pin as an input and begins watching
// for edges in both directions.
func (p *Pin) Start() error {
	err := embd.InitGPIO()
	if err != nil {
		return errors.Wrap(err, "could not initialise GPIO")
	}

	p.pin, err = embd.NewDigitalPin(p.num)
	if err != nil {
		return errors.Wrapf(err, "could not open GPIO pin %d", p.num)
	}

	err = p.pin.SetDirection(embd.In)
	if err != nil {
		return errors.Wrapf(err, "could not set GPIO pin %d direction", p.num)
	}

	p.mu.Lock()
	p.open = true
	p.mu.Unlock()

	err = p.pin.Watch(embd.EdgeBoth, p.edge)
	if err != nil {
		return errors.Wrapf(err, "could not watch GPIO pin %d", p.num)
	}

	p.log.Info("watching TTL pin", "pin", p.num, "bounce", p.bounce.String())
	return nil
}

// edge is the watch callback. It reads the pin level and queues an event,
// unless the edge falls within the debounce period or the queue is full.
func (p *Pin) edge(dp embd.DigitalPin) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return
	}
	if !p.debounced(now) {
		return
	}

	level, err := dp.Read()
	if err != nil {
		p.log.Error("could not read TTL pin", "error", err.Error())
		return
	}

	select {
	case p.events <- Event{Time: now, Level: level}:
	default:
		p.log.Warning("TTL event dropped, queue full")
	}
}

// debounced reports whether an edge observed at now should be accepted, and
// records it as the last accepted edge if so. The caller must hold p.mu.
func (p *Pin) debounced(now time.Time) bool {
	if p.bounce != 0 && !p.last.IsZero() && now.Sub(p.last) < p.bounce {
		return false
	}
	p.last = now
	return true
}

// Stop stops watching the pin, releases GPIO and closes the event channel.
func (p *Pin) Stop() error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return nil
	}
	p.open = false
	p.mu.Unlock()

	var firstErr error
	if p.pin != nil {
		p.pin.StopWatching()
		err := p.pin.Close()
		if err != nil {
			firstErr = errors.Wrap(err, "could not close GPIO pin")
		}
	}

	err := embd.CloseGPIO()
	if err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "could not close GPIO")
	}

	// Safe to close now; edge refuses to send once open is false.
	close(p.events)
	return firstErr
}

// Events returns the channel on which pin events are delivered.
func (p *Pin) Events() <-chan Event { return p.events }

// Sim is a Source that synthesises TTL pulses at a fixed period, alternating
// level each event. It stands in for pulse hardware during bench runs and
// testing.
type Sim struct {
	period time.Duration
	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	open   bool
}

// NewSim returns a Sim generating one edge per period.
func NewSim(period time.Duration) *Sim {
	return &Sim{
		period: period,
		events: make(chan Event, eventQueueLen),
		done:   make(chan struct{}),
	}
}

// Start begins pulse generation.
func (s *Sim) Start() error {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *Sim) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	level := 0
	for {
		select {
		case <-s.done:
			return
		case t := <-ticker.C:
			level ^= 1
			select {
			case s.events <- Event{Time: t, Level: level}:
			default:
			}
		}
	}
}

// Stop ends pulse generation and closes the event channel. Stop is
// idempotent, like Pin's.
func (s *Sim) Stop() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	close(s.events)
	return nil
}

// Events returns the channel on which simulated events are delivered.
func (s *Sim) Events() <-chan Event { return s.events }
