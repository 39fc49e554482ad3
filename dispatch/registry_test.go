package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reflux-go/reflux/draft"
	"github.com/reflux-go/reflux/router"
)

func nopReducer(*draft.Draft, Event) any { return nil }

func TestRegistry_SynonymKeyRegistersEveryType(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.addHandler("setName, clearName", "name", 0, nil, nopReducer))

	assert.Len(t, r.entries("setName"), 1)
	assert.Len(t, r.entries("clearName"), 1)
	assert.Equal(t, []string{"setName", "clearName"}, r.handlerTypes())
}

func TestRegistry_StageZeroDefaultsToNormal(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.addHandler("tick", "counter", 0, nil, nopReducer))
	assert.Equal(t, router.StageNormal, r.entries("tick")[0].stage)
}

func TestRegistry_EntriesKeepRegistrationOrder(t *testing.T) {
	r := newRegistry()
	first := func(d *draft.Draft, ev Event) any { return "first" }
	second := func(d *draft.Draft, ev Event) any { return "second" }
	require.NoError(t, r.addHandler("tick", "a", 0, nil, first))
	require.NoError(t, r.addHandler("tick", "b", 0, nil, second))

	entries := r.entries("tick")
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].slice)
	assert.Equal(t, "b", entries[1].slice)
	assert.Equal(t, "first", entries[0].reduce(nil, Event{}))
	assert.Equal(t, "second", entries[1].reduce(nil, Event{}))
}

func TestWithHandlerMap_StableOrderForOverlappingKeys(t *testing.T) {
	// Two map keys registering the same event type ("a" directly, "a,b"
	// via synonym) must land in the same entry order on every
	// construction.
	for i := 0; i < 100; i++ {
		cfg := &config{}
		WithHandlerMap("s", 0, map[string]Reducer{
			"a":   func(*draft.Draft, Event) any { return "solo" },
			"a,b": func(*draft.Draft, Event) any { return "pair" },
		})(cfg)

		r := newRegistry()
		for _, register := range cfg.registrations {
			require.NoError(t, register(r))
		}

		entries := r.entries("a")
		require.Len(t, entries, 2)
		assert.Equal(t, "solo", entries[0].reduce(nil, Event{}))
		assert.Equal(t, "pair", entries[1].reduce(nil, Event{}))
	}
}

func TestRegistry_BadRegistrations(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"empty slice", newRegistry().addHandler("tick", "", 0, nil, nopReducer)},
		{"nil reducer", newRegistry().addHandler("tick", "counter", 0, nil, nil)},
		{"wildcard stage", newRegistry().addHandler("tick", "counter", router.StageAll, nil, nopReducer)},
		{"empty event key", newRegistry().addHandler("", "counter", 0, nil, nopReducer)},
		{"only delimiters", newRegistry().addHandler(" , ,", "counter", 0, nil, nopReducer)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.err)
			var ce *ConfigError
			require.ErrorAs(t, tc.err, &ce)
			assert.Equal(t, CodeBadRegistration, ce.Code)
		})
	}
}

func TestRegistry_AddModel(t *testing.T) {
	r := newRegistry()
	m := &fakeExternalModel{types: []string{"login", "logout"}, state: "s"}
	require.NoError(t, r.addModel("session", m))

	require.Len(t, r.modelsFor("login"), 1)
	require.Len(t, r.modelsFor("logout"), 1)
	assert.Equal(t, "session", r.modelsFor("login")[0].slice)
	assert.Nil(t, r.modelsFor("other"))
}

func TestRegistry_AddModelRejectsEmptyDeclarations(t *testing.T) {
	r := newRegistry()

	err := r.addModel("session", &fakeExternalModel{})
	require.Error(t, err)

	err = r.addModel("session", &fakeExternalModel{types: []string{""}})
	require.Error(t, err)

	err = r.addModel("", &fakeExternalModel{types: []string{"login"}})
	require.Error(t, err)
}

func TestRegistry_OwnershipConflict(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.addHandler("login", "session", 0, nil, nopReducer))
	require.NoError(t, r.addModel("session", &fakeExternalModel{types: []string{"login"}}))

	err := r.validateOwnership()
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeSliceConflict, ce.Code)
	assert.Equal(t, "session", ce.Field)
}

func TestRegistry_OwnershipDisjointSlicesCoexist(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.addHandler("login", "audit", 0, nil, nopReducer))
	require.NoError(t, r.addModel("session", &fakeExternalModel{types: []string{"login"}}))
	assert.NoError(t, r.validateOwnership())
}
