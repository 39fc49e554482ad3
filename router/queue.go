package router

// pending is a submitted event waiting for delivery.
type pending struct {
	modelID   string
	eventType string
	payload   any
	broadcast bool
}

// eventQueue is an unbounded FIFO of submitted events.
//
// It is unbounded so cascading publishes from handlers can enqueue
// arbitrarily many follow-on events without blocking the drain loop.
// The queue is not self-locking: the hub guards all access with its own
// mutex.
type eventQueue struct {
	events []pending
}

// newEventQueue creates an empty queue.
func newEventQueue() *eventQueue {
	return &eventQueue{events: make([]pending, 0, 64)}
}

// enqueue appends an event to the back of the queue.
func (q *eventQueue) enqueue(p pending) {
	q.events = append(q.events, p)
}

// tryDequeue removes and returns the front event, if any.
func (q *eventQueue) tryDequeue() (pending, bool) {
	if len(q.events) == 0 {
		return pending{}, false
	}
	p := q.events[0]

	// Nil out the slot so the backing array does not retain payload
	// references until reallocation.
	q.events[0] = pending{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return p, true
}

// len returns the current queue length.
func (q *eventQueue) len() int {
	return len(q.events)
}
