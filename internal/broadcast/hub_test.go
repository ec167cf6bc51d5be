package broadcast

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSub struct {
	id     string
	events []any
	fail   bool
}

func (s *testSub) ID() string { return s.id }

func (s *testSub) Deliver(event any) error {
	if s.fail {
		return errors.New("buffer full")
	}
	s.events = append(s.events, event)
	return nil
}

func newTestHub() *Hub {
	return NewHub(log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}))
}

func TestPublishOrder(t *testing.T) {
	hub := newTestHub()
	sub := &testSub{id: "alice"}
	hub.Subscribe("tbl_1", sub, nil)

	for i := 0; i < 5; i++ {
		hub.Publish("tbl_1", i)
	}
	assert.Equal(t, []any{0, 1, 2, 3, 4}, sub.events)
}

func TestSnapshotOnSubscribe(t *testing.T) {
	hub := newTestHub()
	hub.Publish("tbl_1", "missed")

	sub := &testSub{id: "alice"}
	hub.Subscribe("tbl_1", sub, func(viewer string) any {
		return "snapshot-for-" + viewer
	})
	hub.Publish("tbl_1", "live")

	require.Len(t, sub.events, 2)
	assert.Equal(t, "snapshot-for-alice", sub.events[0], "snapshot precedes live events")
	assert.Equal(t, "live", sub.events[1])
}

func TestPublishEachPersonalizes(t *testing.T) {
	hub := newTestHub()
	alice := &testSub{id: "alice"}
	bob := &testSub{id: "bob"}
	hub.Subscribe("tbl_1", alice, nil)
	hub.Subscribe("tbl_1", bob, nil)

	hub.PublishEach("tbl_1", func(viewer string) any { return "hello " + viewer })

	assert.Equal(t, []any{"hello alice"}, alice.events)
	assert.Equal(t, []any{"hello bob"}, bob.events)
}

func TestFailedSubscriberDropped(t *testing.T) {
	hub := newTestHub()
	good := &testSub{id: "good"}
	bad := &testSub{id: "bad", fail: true}
	hub.Subscribe("tbl_1", good, nil)
	hub.Subscribe("tbl_1", bad, nil)
	require.Equal(t, 2, hub.Subscribers("tbl_1"))

	hub.Publish("tbl_1", "x")
	assert.Equal(t, 1, hub.Subscribers("tbl_1"), "failed subscriber removed, no retry")

	hub.Publish("tbl_1", "y")
	assert.Equal(t, []any{"x", "y"}, good.events)
	assert.Empty(t, bad.events)
}

func TestUnsubscribe(t *testing.T) {
	hub := newTestHub()
	sub := &testSub{id: "alice"}
	hub.Subscribe("tbl_1", sub, nil)
	hub.Unsubscribe("tbl_1", "alice")

	hub.Publish("tbl_1", "x")
	assert.Empty(t, sub.events)
	assert.Equal(t, 0, hub.Subscribers("tbl_1"))
}

func TestUnsubscribeAll(t *testing.T) {
	hub := newTestHub()
	sub := &testSub{id: "alice"}
	hub.Subscribe("tbl_1", sub, nil)
	hub.Subscribe("tbl_2", sub, nil)

	hub.UnsubscribeAll("alice")
	assert.Equal(t, 0, hub.Subscribers("tbl_1"))
	assert.Equal(t, 0, hub.Subscribers("tbl_2"))
}

func TestResubscribeReplaces(t *testing.T) {
	hub := newTestHub()
	first := &testSub{id: "alice"}
	second := &testSub{id: "alice"}
	hub.Subscribe("tbl_1", first, nil)
	hub.Subscribe("tbl_1", second, nil)
	require.Equal(t, 1, hub.Subscribers("tbl_1"))

	hub.Publish("tbl_1", "x")
	assert.Empty(t, first.events)
	assert.Equal(t, []any{"x"}, second.events)
}

func TestCloseTopic(t *testing.T) {
	hub := newTestHub()
	sub := &testSub{id: "alice"}
	hub.Subscribe("tbl_1", sub, nil)
	hub.CloseTopic("tbl_1")
	hub.Publish("tbl_1", "x")
	assert.Empty(t, sub.events)
}

func TestFailedSnapshotNotSubscribed(t *testing.T) {
	hub := newTestHub()
	bad := &testSub{id: "bad", fail: true}
	hub.Subscribe("tbl_1", bad, func(string) any { return "snap" })
	assert.Equal(t, 0, hub.Subscribers("tbl_1"))
}
