package engine

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/core"
)

// Speaker voices text to the user. Implementations wrap a TTS engine or
// just print to the console.
type Speaker interface {
	Speak(text string)
}

// EventSink receives every dispatched event, spoken or not. The
// websocket hub implements this to mirror events to dashboards.
type EventSink interface {
	Publish(event core.Event)
}

// Dispatcher routes rule events to the speaker and the sinks. Repeated
// SPEAK texts inside the dedup window are silenced so a rule that keeps
// firing on every frame does not nag; direct answers bypass the window.
type Dispatcher struct {
	log     *zap.Logger
	speaker Speaker
	sinks   []EventSink
	dedup   *ristretto.Cache
	window  time.Duration
}

// NewDispatcher builds a dispatcher with the given dedup window. A zero
// window disables deduplication.
func NewDispatcher(speaker Speaker, window time.Duration, log *zap.Logger, sinks ...EventSink) (*Dispatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		log:     log.Named("dispatch"),
		speaker: speaker,
		sinks:   sinks,
		dedup:   cache,
		window:  window,
	}, nil
}

// Dispatch delivers rule events. SPEAK events go through the dedup
// window before reaching the speaker; LOG events only hit the log and
// the sinks.
func (d *Dispatcher) Dispatch(events []core.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case core.EventSpeak:
			if d.suppressed(ev.Text) {
				d.log.Debug("suppressed duplicate announcement", zap.String("text", ev.Text))
				continue
			}
			d.log.Info("speaking", zap.String("text", ev.Text))
			if d.speaker != nil {
				d.speaker.Speak(ev.Text)
			}
		case core.EventLog:
			d.log.Info(ev.Text)
		}
		d.publish(ev)
	}
}

// Announce speaks a direct answer. Answers are responses to questions,
// so they are never deduplicated.
func (d *Dispatcher) Announce(text string) {
	if text == "" {
		return
	}
	d.log.Info("answering", zap.String("text", text))
	if d.speaker != nil {
		d.speaker.Speak(text)
	}
	d.publish(core.Speak(text, time.Now()))
}

func (d *Dispatcher) publish(ev core.Event) {
	for _, sink := range d.sinks {
		sink.Publish(ev)
	}
}

// suppressed reports whether text was already spoken inside the window,
// marking it spoken otherwise.
func (d *Dispatcher) suppressed(text string) bool {
	if d.window <= 0 {
		return false
	}
	if _, found := d.dedup.Get(text); found {
		return true
	}
	d.dedup.SetWithTTL(text, struct{}{}, 1, d.window)
	// Sets are async; wait so the very next frame sees the entry.
	d.dedup.Wait()
	return false
}

// Close releases the dedup cache.
func (d *Dispatcher) Close() {
	if d.dedup != nil {
		d.dedup.Close()
	}
}
