package dispatch

import (
	"sync"

	"github.com/reflux-go/reflux/router"
)

// inputBuffer sizes the channels between the router and stream producers.
const inputBuffer = 16

// normalizer merges every registered transformation stream into one
// fan-in and routes each output event back into the router.
//
// Each registered stream gets its own forwarding goroutine; a single
// consumer goroutine applies the broadcast/publish decision per event.
// One stream completing, or one output event failing, never disturbs the
// sibling streams in the merge.
type normalizer struct {
	d *Dispatcher

	mu     sync.Mutex
	subs   []router.Subscription
	inputs []*inputChan

	merged       chan *OutputEvent
	producers    sync.WaitGroup
	done         chan struct{}
	consumerDone chan struct{}
	closeOnce    sync.Once
}

// inputChan pairs a route channel with a closed flag so a delivery racing
// disposal can never send on a closed channel. Sends and close serialize
// on the mutex; a send blocked on a full channel is released through done
// before close takes the lock.
type inputChan struct {
	mu     sync.Mutex
	ch     chan InputEvent
	closed bool
}

func (c *inputChan) send(ie InputEvent, done <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- ie:
	case <-done:
	}
}

func (c *inputChan) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// newNormalizer wires all registered streams and starts the merge.
func newNormalizer(d *Dispatcher) *normalizer {
	n := &normalizer{
		d:            d,
		merged:       make(chan *OutputEvent, inputBuffer),
		done:         make(chan struct{}),
		consumerDone: make(chan struct{}),
	}

	var outs []<-chan *OutputEvent
	for _, factory := range d.factories {
		if out := factory(n.observe); out != nil {
			outs = append(outs, out)
		}
	}
	for _, src := range d.sources {
		in := n.input(src.StreamRoutes())
		if out := src.Transform(in); out != nil {
			outs = append(outs, out)
		}
	}

	for _, out := range outs {
		n.producers.Add(1)
		go n.forward(out)
	}
	go func() {
		n.producers.Wait()
		close(n.merged)
	}()
	go n.consume()
	return n
}

// observe subscribes to one event type at one stage, filtered to this
// model, and maps envelopes into input events.
func (n *normalizer) observe(eventType string, stage router.Stage) <-chan InputEvent {
	return n.input([]StreamRoute{{EventType: eventType, Stage: stage}})
}

// input subscribes every route into one shared channel. A zero route
// stage subscribes to all stages.
func (n *normalizer) input(routes []StreamRoute) chan InputEvent {
	ic := &inputChan{ch: make(chan InputEvent, inputBuffer)}
	for _, route := range routes {
		stage := route.Stage
		if stage == 0 {
			stage = router.StageAll
		}
		feed := n.d.rt.Events([]string{route.EventType}, n.d.ModelID(), stage)
		sub := feed.Subscribe(func(env router.Envelope) {
			n.push(ic, env)
		})
		n.mu.Lock()
		n.subs = append(n.subs, sub)
		n.mu.Unlock()
	}
	n.mu.Lock()
	n.inputs = append(n.inputs, ic)
	n.mu.Unlock()
	return ic.ch
}

// push maps one envelope into an input event carrying a snapshot of the
// originating model's store.
func (n *normalizer) push(ic *inputChan, env router.Envelope) {
	select {
	case <-n.done:
		return
	default:
	}

	var snap map[string]any
	if env.Source != nil {
		snap = env.Source.Snapshot()
	} else {
		snap = n.d.st.Snapshot()
	}

	ic.send(InputEvent{Type: env.Type, Event: env.Event, Ctx: env.Ctx, Store: snap}, n.done)
}

// forward drains one output stream into the merge. Stream completion is
// logged and ends only this producer.
func (n *normalizer) forward(out <-chan *OutputEvent) {
	defer n.producers.Done()
	for oe := range out {
		if oe == nil {
			// Null output events are filtered, never forwarded.
			continue
		}
		select {
		case n.merged <- oe:
		case <-n.done:
			return
		}
	}
	n.d.log.Debug("output stream completed", "model", n.d.ModelID())
}

// consume routes merged output events back into the router.
func (n *normalizer) consume() {
	defer close(n.consumerDone)
	for oe := range n.merged {
		n.route(oe)
	}
}

// route publishes one output event. A panic or error while delivering is
// logged and the event dropped; the merge stays alive.
func (n *normalizer) route(oe *OutputEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.d.log.Error("dropping output event after panic",
				"model", n.d.ModelID(),
				"event", oe.Type,
				"panic", r)
		}
	}()
	if n.d.disposed.Load() {
		return
	}

	var err error
	if oe.Broadcast {
		err = n.d.rt.Broadcast(oe.Type, oe.Event)
	} else {
		target := oe.ModelID
		if target == "" {
			target = n.d.ModelID()
		}
		err = n.d.rt.Publish(target, oe.Type, oe.Event)
	}
	if err != nil {
		n.d.log.Error("dropping output event",
			"model", n.d.ModelID(),
			"event", oe.Type,
			"error", err)
	}
}

// close cancels every route subscription and closes the input channels so
// well-behaved streams terminate. It does not wait for badly behaved
// producers.
func (n *normalizer) close() {
	n.closeOnce.Do(func() {
		close(n.done)

		n.mu.Lock()
		subs := n.subs
		inputs := n.inputs
		n.subs = nil
		n.inputs = nil
		n.mu.Unlock()

		for _, sub := range subs {
			sub.Cancel()
		}
		for _, ic := range inputs {
			ic.close()
		}
	})
}

// wait blocks until the merge consumer has exited. Test hook.
func (n *normalizer) wait() {
	<-n.consumerDone
}
