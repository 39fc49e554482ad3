package dispatch

import "github.com/reflux-go/reflux/router"

// EventDispatched is the router's per-stage completion hook. The
// model-sync engine ignores every stage except the terminal one: only
// after dispatch at the final stage has completed is an external model's
// computed state safe to pull into the store.
func (d *Dispatcher) EventDispatched(eventType string, stage router.Stage) {
	if d.disposed.Load() || stage != router.StageFinal {
		return
	}
	for _, entry := range d.reg.modelsFor(eventType) {
		d.st.Set(entry.slice, entry.model.State())
		d.log.Debug("external model synced",
			"model", d.ModelID(),
			"event", eventType,
			"slice", entry.slice)
	}
}

// BatchStarting runs the optional pre-processor before a batch of events.
// A non-nil return replaces the dispatcher's store.
func (d *Dispatcher) BatchStarting() {
	if d.disposed.Load() || d.pre == nil {
		return
	}
	if next := d.pre(d.st); next != nil {
		d.st = next
	}
}

// BatchFinished runs the optional post-processor after a batch, with the
// event types processed in it. A non-nil return replaces the store.
func (d *Dispatcher) BatchFinished(eventTypes []string) {
	if d.disposed.Load() || d.post == nil {
		return
	}
	if next := d.post(eventTypes, d.st); next != nil {
		d.st = next
	}
}
