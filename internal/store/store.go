// Package store persists tournament state. The Repository interface is the
// narrow surface the engine depends on; sqlite and postgres back it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: not found")

// TournamentRecord mirrors the tournament row.
type TournamentRecord struct {
	ID                string
	Name              string
	StartTime         time.Time
	ActualStartTime   *time.Time
	MaxPlayers        int
	SeatsPerTable     int
	StartingChips     int
	PrizePlaces       int
	BlindScheduleJSON string
	Status            string
}

// RegistrationRecord mirrors the tournament_registration row.
type RegistrationRecord struct {
	TournamentID string
	UserID       string
	Status       string
}

// GameRecord mirrors the game row: one table of a tournament.
type GameRecord struct {
	ID                string
	TournamentID      string
	TableNumber       int
	Status            string
	CurrentBlindLevel int
	SmallBlind        int
	BigBlind          int
}

// SeatRecord mirrors the seat row.
type SeatRecord struct {
	GameID     string
	UserID     string
	SeatNumber int
	Chips      int
	Status     string
}

// HandRecord is a write-only archival row for a completed hand.
type HandRecord struct {
	ID                 string
	GameID             string
	HandNumber         int
	Pot                int
	CommunityCardsJSON string
	HistoryJSON        string
	WinnerUserIDsJSON  string
	CreatedAt          time.Time
}

// StandingRecord is one place in the final result.
type StandingRecord struct {
	TournamentID string
	UserID       string
	Place        int
}

// Repository is the persistence surface the engine uses. All mutations are
// upserts so replays after a retry are harmless.
type Repository interface {
	SaveTournament(ctx context.Context, t TournamentRecord) error
	FindTournament(ctx context.Context, id string) (TournamentRecord, error)
	ListTournamentsByStatus(ctx context.Context, status string) ([]TournamentRecord, error)

	UpsertRegistration(ctx context.Context, r RegistrationRecord) error
	DeleteRegistration(ctx context.Context, tournamentID, userID string) error
	CountRegistrations(ctx context.Context, tournamentID string) (int, error)
	ListRegistrations(ctx context.Context, tournamentID string) ([]RegistrationRecord, error)

	SaveGame(ctx context.Context, g GameRecord) error
	FindGameWithSeats(ctx context.Context, gameID string) (GameRecord, []SeatRecord, error)
	SaveSeat(ctx context.Context, s SeatRecord) error
	DeleteSeat(ctx context.Context, gameID, userID string) error

	AppendHandRecord(ctx context.Context, h HandRecord) error
	SaveStandings(ctx context.Context, tournamentID string, standings []StandingRecord) error
	Standings(ctx context.Context, tournamentID string) ([]StandingRecord, error)

	Close() error
}

// IsTransient reports whether an error is worth retrying: anything except
// logical misses and caller cancellation.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

const (
	retryAttempts = 3
	retryBase     = 50 * time.Millisecond
)

// retry runs fn up to retryAttempts times with doubling backoff.
func retry(ctx context.Context, logger *log.Logger, op string, fn func() error) error {
	var err error
	backoff := retryBase
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == retryAttempts {
			break
		}
		logger.Warn("transient store error, retrying", "op", op, "attempt", attempt, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}

// retrying decorates a Repository with the transient-retry policy.
type retrying struct {
	inner  Repository
	logger *log.Logger
}

// WithRetry wraps a repository so transient failures are retried with
// bounded backoff before being surfaced.
func WithRetry(inner Repository, logger *log.Logger) Repository {
	return &retrying{inner: inner, logger: logger.WithPrefix("store")}
}

func (r *retrying) SaveTournament(ctx context.Context, t TournamentRecord) error {
	return retry(ctx, r.logger, "save_tournament", func() error { return r.inner.SaveTournament(ctx, t) })
}

func (r *retrying) FindTournament(ctx context.Context, id string) (TournamentRecord, error) {
	var out TournamentRecord
	err := retry(ctx, r.logger, "find_tournament", func() error {
		var err error
		out, err = r.inner.FindTournament(ctx, id)
		return err
	})
	return out, err
}

func (r *retrying) ListTournamentsByStatus(ctx context.Context, status string) ([]TournamentRecord, error) {
	var out []TournamentRecord
	err := retry(ctx, r.logger, "list_tournaments", func() error {
		var err error
		out, err = r.inner.ListTournamentsByStatus(ctx, status)
		return err
	})
	return out, err
}

func (r *retrying) UpsertRegistration(ctx context.Context, reg RegistrationRecord) error {
	return retry(ctx, r.logger, "upsert_registration", func() error { return r.inner.UpsertRegistration(ctx, reg) })
}

func (r *retrying) DeleteRegistration(ctx context.Context, tournamentID, userID string) error {
	return retry(ctx, r.logger, "delete_registration", func() error {
		return r.inner.DeleteRegistration(ctx, tournamentID, userID)
	})
}

func (r *retrying) CountRegistrations(ctx context.Context, tournamentID string) (int, error) {
	var out int
	err := retry(ctx, r.logger, "count_registrations", func() error {
		var err error
		out, err = r.inner.CountRegistrations(ctx, tournamentID)
		return err
	})
	return out, err
}

func (r *retrying) ListRegistrations(ctx context.Context, tournamentID string) ([]RegistrationRecord, error) {
	var out []RegistrationRecord
	err := retry(ctx, r.logger, "list_registrations", func() error {
		var err error
		out, err = r.inner.ListRegistrations(ctx, tournamentID)
		return err
	})
	return out, err
}

func (r *retrying) SaveGame(ctx context.Context, g GameRecord) error {
	return retry(ctx, r.logger, "save_game", func() error { return r.inner.SaveGame(ctx, g) })
}

func (r *retrying) FindGameWithSeats(ctx context.Context, gameID string) (GameRecord, []SeatRecord, error) {
	var (
		game  GameRecord
		seats []SeatRecord
	)
	err := retry(ctx, r.logger, "find_game", func() error {
		var err error
		game, seats, err = r.inner.FindGameWithSeats(ctx, gameID)
		return err
	})
	return game, seats, err
}

func (r *retrying) SaveSeat(ctx context.Context, s SeatRecord) error {
	return retry(ctx, r.logger, "save_seat", func() error { return r.inner.SaveSeat(ctx, s) })
}

func (r *retrying) DeleteSeat(ctx context.Context, gameID, userID string) error {
	return retry(ctx, r.logger, "delete_seat", func() error { return r.inner.DeleteSeat(ctx, gameID, userID) })
}

func (r *retrying) AppendHandRecord(ctx context.Context, h HandRecord) error {
	return retry(ctx, r.logger, "append_hand", func() error { return r.inner.AppendHandRecord(ctx, h) })
}

func (r *retrying) SaveStandings(ctx context.Context, tournamentID string, standings []StandingRecord) error {
	return retry(ctx, r.logger, "save_standings", func() error {
		return r.inner.SaveStandings(ctx, tournamentID, standings)
	})
}

func (r *retrying) Standings(ctx context.Context, tournamentID string) ([]StandingRecord, error) {
	var out []StandingRecord
	err := retry(ctx, r.logger, "standings", func() error {
		var err error
		out, err = r.inner.Standings(ctx, tournamentID)
		return err
	})
	return out, err
}

func (r *retrying) Close() error { return r.inner.Close() }
