package server

import (
	"context"
	"encoding/json"
	"io"
	rand "math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokerforge/tourney/internal/broadcast"
	"github.com/pokerforge/tourney/internal/game"
	"github.com/pokerforge/tourney/internal/gameid"
	"github.com/pokerforge/tourney/internal/table"
	"github.com/pokerforge/tourney/internal/timer"
	"github.com/pokerforge/tourney/internal/tournament"
	"github.com/pokerforge/tourney/poker"
)

// captureSub records delivered messages in order.
type captureSub struct {
	id string

	mu   sync.Mutex
	msgs []*Message
}

func (s *captureSub) ID() string { return s.id }

func (s *captureSub) Deliver(event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, event.(*Message))
	return nil
}

func (s *captureSub) messages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.msgs...)
}

func (s *captureSub) last(t *testing.T) *Message {
	t.Helper()
	msgs := s.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func decodeData[T any](t *testing.T, msg *Message) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(msg.Data, &out))
	return out
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	logger := log.New(io.Discard)
	clock := quartz.NewMock(t)
	hub := broadcast.NewHub(logger)
	timers := timer.NewService(clock, logger)
	rng := rand.New(rand.NewPCG(11, 11))
	return NewGateway(logger, hub, timers, gameid.New(), nil, rng)
}

func mustParse(t *testing.T, s string) poker.Card {
	t.Helper()
	card, err := poker.ParseCard(s)
	require.NoError(t, err)
	return card
}

func twoSeatState(t *testing.T) table.State {
	return table.State{
		TableID:    "tbl_1",
		Street:     "preflop",
		Pot:        3,
		SmallBlind: 1,
		BigBlind:   2,
		DealerSeat: 1,
		SBSeat:     1,
		BBSeat:     2,
		Seats: []table.SeatView{
			{Number: 1, UserID: "alice", Name: "Alice", Chips: 99,
				HoleCards: []poker.Card{mustParse(t, "As"), mustParse(t, "Ks")}},
			{Number: 2, UserID: "bob", Name: "Bob", Chips: 98,
				HoleCards: []poker.Card{mustParse(t, "6d"), mustParse(t, "6h")}},
		},
	}
}

func TestHandStartRedactsHoleCards(t *testing.T) {
	g := newTestGateway(t)
	alice := &captureSub{id: "alice"}
	bob := &captureSub{id: "bob"}
	viewer := &captureSub{id: "carol"}
	g.hub.Subscribe("tbl_1", alice, nil)
	g.hub.Subscribe("tbl_1", bob, nil)
	g.hub.Subscribe("tbl_1", viewer, nil)

	fan := &fanout{g: g, tournamentID: "trn_1"}
	fan.HandStarted(table.HandStartEvent{TableID: "tbl_1", State: twoSeatState(t)})

	for _, tc := range []struct {
		sub     *captureSub
		visible map[int]bool
	}{
		{alice, map[int]bool{1: true}},
		{bob, map[int]bool{2: true}},
		{viewer, map[int]bool{}},
	} {
		msg := tc.sub.last(t)
		require.Equal(t, MessageTypeTableState, msg.Type)
		state := decodeData[TableStateData](t, msg)
		assert.Equal(t, "trn_1", state.TournamentID)
		require.Len(t, state.Seats, 2)
		for _, seat := range state.Seats {
			if tc.visible[seat.SeatNumber] {
				assert.Len(t, seat.HoleCards, 2, "viewer %s seat %d", tc.sub.id, seat.SeatNumber)
			} else {
				assert.Empty(t, seat.HoleCards, "viewer %s must not see seat %d", tc.sub.id, seat.SeatNumber)
			}
		}
	}
}

func TestHandEndRevealsShowdownHands(t *testing.T) {
	g := newTestGateway(t)
	viewer := &captureSub{id: "carol"}
	g.hub.Subscribe("tbl_1", viewer, nil)

	state := twoSeatState(t)
	fan := &fanout{g: g, tournamentID: "trn_1"}
	fan.HandEnded(table.HandEndEvent{
		TableID: "tbl_1",
		Result: &game.Result{
			Winners: []game.Winner{{SeatNumber: 2, UserID: "bob", Amount: 4, Category: "Straight"}},
			Reveals: []game.Reveal{
				{SeatNumber: 1, UserID: "alice", Cards: state.Seats[0].HoleCards},
				{SeatNumber: 2, UserID: "bob", Cards: state.Seats[1].HoleCards},
			},
			Showdown: true,
		},
		State: state,
	})

	msgs := viewer.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, MessageTypeHandResult, msgs[0].Type)
	result := decodeData[HandResultData](t, msgs[0])
	require.Len(t, result.Winners, 1)
	assert.Equal(t, "bob", result.Winners[0].UserID)
	assert.Equal(t, 4, result.Winners[0].Amount)
	assert.Len(t, result.Reveals, 2)

	// Showdown hands are face up for everyone in the closing state.
	require.Equal(t, MessageTypeTableState, msgs[1].Type)
	closing := decodeData[TableStateData](t, msgs[1])
	for _, seat := range closing.Seats {
		assert.Len(t, seat.HoleCards, 2, "seat %d revealed at showdown", seat.SeatNumber)
	}
}

func TestHandEndWithoutResultPublishesNothing(t *testing.T) {
	g := newTestGateway(t)
	viewer := &captureSub{id: "carol"}
	g.hub.Subscribe("tbl_1", viewer, nil)

	fan := &fanout{g: g, tournamentID: "trn_1"}
	fan.HandEnded(table.HandEndEvent{TableID: "tbl_1"})
	assert.Empty(t, viewer.messages())
}

func TestRegisterSubscribesToTournamentFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	g := newTestGateway(t)
	ctrl, err := g.CreateTournament(ctx, tournament.Config{
		ID:            "trn_feed",
		Name:          "Feed Test",
		MaxPlayers:    8,
		SeatsPerTable: 6,
		StartingChips: 1000,
		PrizePlaces:   1,
		Schedule: tournament.Schedule{
			{SmallBlind: 1, BigBlind: 2, Duration: 10 * time.Minute},
			{SmallBlind: 2, BigBlind: 4},
		},
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.OpenRegistration(ctx))

	_, err = g.CreateTournament(ctx, tournament.Config{ID: "trn_feed"})
	assert.Error(t, err, "duplicate id rejected")

	alice := &captureSub{id: "alice"}
	err = g.Register(ctx, "trn_feed", tournament.Player{UserID: "alice", Name: "Alice"}, alice)
	require.NoError(t, err)

	msg := alice.last(t)
	require.Equal(t, MessageTypeTournamentState, msg.Type)
	snap := decodeData[TournamentStateData](t, msg)
	assert.Equal(t, "trn_feed", snap.ID)
	assert.Equal(t, "registering", snap.Status)

	err = g.Register(ctx, "trn_missing", tournament.Player{UserID: "alice"}, alice)
	assert.Error(t, err)

	require.NoError(t, g.Unregister(ctx, "trn_feed", "alice"))
	assert.Zero(t, g.hub.Subscribers("trn_feed"))
}
