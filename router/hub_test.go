package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingModel captures router notifications.
type recordingModel struct {
	id         string
	dispatched []string // "event/stage"
	starts     int
	finishes   [][]string
}

func (m *recordingModel) ModelID() string { return m.id }

func (m *recordingModel) EventDispatched(eventType string, stage Stage) {
	m.dispatched = append(m.dispatched, eventType+"/"+stage.String())
}

func (m *recordingModel) BatchStarting() { m.starts++ }

func (m *recordingModel) BatchFinished(eventTypes []string) {
	m.finishes = append(m.finishes, eventTypes)
}

func collect(dst *[]Envelope) func(Envelope) {
	return func(env Envelope) { *dst = append(*dst, env) }
}

func TestHub_DeliversEveryStageInOrder(t *testing.T) {
	h := New()
	var got []Envelope
	h.Events([]string{"tick"}, "m1", StageAll).Subscribe(collect(&got))

	require.NoError(t, h.Publish("m1", "tick", 7))

	require.Len(t, got, 3)
	assert.Equal(t, []Stage{StagePre, StageNormal, StageFinal},
		[]Stage{got[0].Stage, got[1].Stage, got[2].Stage})
	for _, env := range got {
		assert.Equal(t, "tick", env.Type)
		assert.Equal(t, 7, env.Event)
		assert.Equal(t, "m1", env.ModelID)
		assert.Equal(t, got[0].ID, env.ID)
		assert.Equal(t, got[0].Seq, env.Seq)
	}
}

func TestHub_StageFilter(t *testing.T) {
	h := New()
	var normal []Envelope
	h.Events([]string{"tick"}, "m1", StageNormal).Subscribe(collect(&normal))

	require.NoError(t, h.Publish("m1", "tick", nil))

	require.Len(t, normal, 1)
	assert.Equal(t, StageNormal, normal[0].Stage)
}

func TestHub_TypeAndModelFilter(t *testing.T) {
	h := New()
	var got []Envelope
	h.Events([]string{"tick"}, "m1", StageAll).Subscribe(collect(&got))

	require.NoError(t, h.Publish("m1", "tock", nil)) // wrong type
	require.NoError(t, h.Publish("m2", "tick", nil)) // wrong model
	assert.Empty(t, got)

	require.NoError(t, h.Publish("m1", "tick", nil))
	assert.Len(t, got, 3)
}

func TestHub_BroadcastReachesEveryModelFilter(t *testing.T) {
	h := New()
	var m1, m2 []Envelope
	h.Events([]string{"derived"}, "m1", StageNormal).Subscribe(collect(&m1))
	h.Events([]string{"derived"}, "m2", StageNormal).Subscribe(collect(&m2))

	require.NoError(t, h.Broadcast("derived", "payload"))

	require.Len(t, m1, 1)
	require.Len(t, m2, 1)
	// Each delivery is addressed to the subscriber's own model.
	assert.Equal(t, "m1", m1[0].ModelID)
	assert.Equal(t, "m2", m2[0].ModelID)
}

func TestHub_PublishRequiresModelID(t *testing.T) {
	h := New()
	assert.Error(t, h.Publish("", "tick", nil))
}

func TestHub_EventDispatchedAfterEachStage(t *testing.T) {
	h := New()
	m := &recordingModel{id: "m1"}
	h.ObserveEventsOn("m1", m)

	var stagesSeen []Stage
	h.Events([]string{"tick"}, "m1", StageAll).Subscribe(func(env Envelope) {
		stagesSeen = append(stagesSeen, env.Stage)
		// Delivery happens before the dispatched notification for the
		// same stage.
		assert.Len(t, m.dispatched, len(stagesSeen)-1)
	})

	require.NoError(t, h.Publish("m1", "tick", nil))
	assert.Equal(t, []string{"tick/pre", "tick/normal", "tick/final"}, m.dispatched)
}

func TestHub_TargetedEventSkipsOtherModels(t *testing.T) {
	h := New()
	m1 := &recordingModel{id: "m1"}
	m2 := &recordingModel{id: "m2"}
	h.ObserveEventsOn("m1", m1)
	h.ObserveEventsOn("m2", m2)

	require.NoError(t, h.Publish("m1", "tick", nil))
	assert.Len(t, m1.dispatched, 3)
	assert.Empty(t, m2.dispatched)

	require.NoError(t, h.Broadcast("derived", nil))
	assert.Len(t, m2.dispatched, 3)
}

func TestHub_BatchHooksBracketDrain(t *testing.T) {
	h := New()
	m := &recordingModel{id: "m1"}
	h.ObserveEventsOn("m1", m)

	require.NoError(t, h.Publish("m1", "a", nil))
	require.Equal(t, 1, m.starts)
	require.Equal(t, [][]string{{"a"}}, m.finishes)
}

func TestHub_ReentrantPublishJoinsRunningBatch(t *testing.T) {
	h := New()
	m := &recordingModel{id: "m1"}
	h.ObserveEventsOn("m1", m)

	var order []string
	h.Events([]string{"first", "second"}, "m1", StageNormal).Subscribe(func(env Envelope) {
		order = append(order, env.Type)
		if env.Type == "first" {
			// Published mid-drain: queued, delivered after the current
			// event finishes its traversal.
			require.NoError(t, h.Publish("m1", "second", nil))
		}
	})

	require.NoError(t, h.Publish("m1", "first", nil))

	assert.Equal(t, []string{"first", "second"}, order)
	// One batch, both events in it.
	assert.Equal(t, 1, m.starts)
	require.Len(t, m.finishes, 1)
	assert.Equal(t, []string{"first", "second"}, m.finishes[0])
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	h := New()
	var got []Envelope
	sub := h.Events([]string{"tick"}, "m1", StageAll).Subscribe(collect(&got))

	require.NoError(t, h.Publish("m1", "tick", nil))
	require.Len(t, got, 3)

	sub.Cancel()
	sub.Cancel() // idempotent
	require.NoError(t, h.Publish("m1", "tick", nil))
	assert.Len(t, got, 3)
}

func TestHub_ModelCancelStopsNotifications(t *testing.T) {
	h := New()
	m := &recordingModel{id: "m1"}
	sub := h.ObserveEventsOn("m1", m)
	sub.Cancel()

	require.NoError(t, h.Publish("m1", "tick", nil))
	assert.Empty(t, m.dispatched)
	assert.Zero(t, m.starts)
}

func TestHub_ClosedRejectsSubmissions(t *testing.T) {
	h := New()
	h.Close()
	assert.ErrorIs(t, h.Publish("m1", "tick", nil), ErrClosed)
	assert.ErrorIs(t, h.Broadcast("tick", nil), ErrClosed)
}

func TestHub_SubscriberPanicDoesNotStopDrain(t *testing.T) {
	h := New()
	h.Events([]string{"tick"}, "m1", StageAll).Subscribe(func(Envelope) {
		panic("boom")
	})
	var got []Envelope
	h.Events([]string{"tick"}, "m1", StageAll).Subscribe(collect(&got))

	require.NoError(t, h.Publish("m1", "tick", nil))
	assert.Len(t, got, 3)
}

func TestHub_SeqIncreasesPerEvent(t *testing.T) {
	h := New()
	var got []Envelope
	h.Events(nil, "", StageFinal).Subscribe(collect(&got))

	require.NoError(t, h.Publish("m1", "a", nil))
	require.NoError(t, h.Publish("m1", "b", nil))

	require.Len(t, got, 2)
	assert.Equal(t, got[0].Seq+1, got[1].Seq)
	assert.Equal(t, int64(2), h.Seq())
}

func TestParseStage(t *testing.T) {
	cases := []struct {
		in   string
		want Stage
	}{
		{"pre", StagePre},
		{"normal", StageNormal},
		{"", StageNormal},
		{"final", StageFinal},
		{"all", StageAll},
	}
	for _, tc := range cases {
		got, err := ParseStage(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParseStage("bogus")
	assert.Error(t, err)
}
