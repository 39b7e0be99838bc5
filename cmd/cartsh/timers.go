package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
)

// Emitter receives a timer's command when the timer fires.
type Emitter func(ctx context.Context, command string) error

var (
	Exists   = errors.New("id exists")
	NotFound = errors.New("not found")
)

// TimerEntry is one pending timer.  A timer either fires once after
// a duration or repeatedly per a cron expression.
type TimerEntry struct {
	Id      string    `json:"id"`
	Command string    `json:"command"`
	At      time.Time `json:"at"`
	Cron    string    `json:"cron,omitempty"`

	expr *cronexpr.Expression
	ctl  chan bool
}

// Timers injects commands into the host on schedules.
type Timers struct {
	Errors chan interface{} `json:"-"`

	sync.Mutex

	timers map[string]*TimerEntry
	ctl    chan bool
	emit   Emitter
}

func NewTimers(emitter Emitter) *Timers {
	return &Timers{
		timers: make(map[string]*TimerEntry, 32),
		emit:   emitter,
		ctl:    make(chan bool),
	}
}

func (ts *Timers) MarshalJSON() ([]byte, error) {
	ts.Lock()
	m := map[string]interface{}{
		"map": ts.timers,
	}
	bs, err := json.Marshal(&m)
	ts.Unlock()
	return bs, err
}

// Add schedules command under id.  spec is either a Go duration
// ("5s", "1h30m") for a one-shot timer or a cron expression
// ("@hourly", "*/5 * * * *") for a recurring one.
func (ts *Timers) Add(ctx context.Context, id string, command string, spec string) error {
	ts.Lock()
	defer ts.Unlock()

	if _, have := ts.timers[id]; have {
		return Exists
	}

	te := &TimerEntry{
		Id:      id,
		Command: command,
		ctl:     make(chan bool),
	}

	if d, err := time.ParseDuration(spec); err == nil {
		te.At = time.Now().UTC().Add(d)
	} else {
		expr, err := cronexpr.Parse(spec)
		if err != nil {
			return fmt.Errorf("bad timer spec '%s': %s", spec, err)
		}
		te.Cron = spec
		te.expr = expr
		te.At = expr.Next(time.Now().UTC())
		if te.At.IsZero() {
			return fmt.Errorf("cron '%s' never fires", spec)
		}
	}

	ts.timers[id] = te

	stop := func() {
		if err := ts.Rem(ctx, id); err != nil && err != NotFound {
			ts.err(fmt.Errorf("timers rem error %v id=%s", err, id))
		}
	}

	go func() {
		for {
			timer := time.NewTimer(te.At.Sub(time.Now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				stop()
				return
			case <-te.ctl:
				// We only get here via a Rem() call.
				timer.Stop()
				return
			case <-ts.ctl:
				timer.Stop()
				stop()
				return
			case <-timer.C:
				Logf("timer %s firing '%s'", id, te.Command)
				if err := ts.emit(ctx, te.Command); err != nil {
					ts.err(fmt.Errorf("timers emit error %v id=%s", err, id))
				}
			}

			if te.expr == nil {
				ts.Lock()
				delete(ts.timers, id)
				ts.Unlock()
				return
			}

			next := te.expr.Next(time.Now().UTC())
			if next.IsZero() {
				stop()
				return
			}
			ts.Lock()
			te.At = next
			ts.Unlock()
		}
	}()

	return nil
}

func (ts *Timers) Shutdown() error {
	close(ts.ctl)
	return nil
}

func (ts *Timers) Rem(ctx context.Context, id string) error {
	ts.Lock()
	defer ts.Unlock()

	te, have := ts.timers[id]
	if !have {
		return NotFound
	}

	delete(ts.timers, id)

	close(te.ctl)

	return nil
}

func (ts *Timers) err(err error) {
	if ts.Errors != nil {
		ts.Errors <- err
	} else {
		log.Println(err)
	}
}
