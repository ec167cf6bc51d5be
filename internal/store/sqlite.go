package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded single-file repository, the default for single-node
// deployments and tests.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the database at path. ":memory:"
// gives an ephemeral store.
func NewSQLite(path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tournament (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    start_time_ms INTEGER NOT NULL,
    actual_start_time_ms INTEGER,
    max_players INTEGER NOT NULL,
    seats_per_table INTEGER NOT NULL,
    starting_chips INTEGER NOT NULL,
    prize_places INTEGER NOT NULL,
    blind_schedule_json TEXT NOT NULL,
    status TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tournament_status ON tournament(status)`,
		`CREATE TABLE IF NOT EXISTS tournament_registration (
    tournament_id TEXT NOT NULL REFERENCES tournament(id),
    user_id TEXT NOT NULL,
    status TEXT NOT NULL,
    UNIQUE (tournament_id, user_id)
)`,
		`CREATE TABLE IF NOT EXISTS game (
    id TEXT PRIMARY KEY,
    tournament_id TEXT NOT NULL REFERENCES tournament(id),
    table_number INTEGER NOT NULL,
    status TEXT NOT NULL,
    current_blind_level INTEGER NOT NULL,
    small_blind INTEGER NOT NULL,
    big_blind INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_game_tournament ON game(tournament_id)`,
		`CREATE TABLE IF NOT EXISTS seat (
    game_id TEXT NOT NULL REFERENCES game(id),
    user_id TEXT NOT NULL,
    seat_number INTEGER NOT NULL,
    chips INTEGER NOT NULL,
    status TEXT NOT NULL,
    UNIQUE (game_id, seat_number),
    UNIQUE (game_id, user_id)
)`,
		`CREATE TABLE IF NOT EXISTS hand_record (
    id TEXT PRIMARY KEY,
    game_id TEXT NOT NULL,
    hand_number INTEGER NOT NULL,
    pot INTEGER NOT NULL,
    community_cards_json TEXT NOT NULL,
    history_json TEXT NOT NULL,
    winner_user_ids_json TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_hand_record_game ON hand_record(game_id, hand_number)`,
		`CREATE TABLE IF NOT EXISTS standing (
    tournament_id TEXT NOT NULL REFERENCES tournament(id),
    user_id TEXT NOT NULL,
    place INTEGER NOT NULL,
    UNIQUE (tournament_id, user_id),
    UNIQUE (tournament_id, place)
)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) SaveTournament(ctx context.Context, t TournamentRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tournament (id, name, start_time_ms, actual_start_time_ms, max_players,
    seats_per_table, starting_chips, prize_places, blind_schedule_json, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    start_time_ms = excluded.start_time_ms,
    actual_start_time_ms = excluded.actual_start_time_ms,
    max_players = excluded.max_players,
    seats_per_table = excluded.seats_per_table,
    starting_chips = excluded.starting_chips,
    prize_places = excluded.prize_places,
    blind_schedule_json = excluded.blind_schedule_json,
    status = excluded.status
`, t.ID, t.Name, t.StartTime.UnixMilli(), nullableTimeMs(t.ActualStartTime),
		t.MaxPlayers, t.SeatsPerTable, t.StartingChips, t.PrizePlaces,
		t.BlindScheduleJSON, t.Status)
	return err
}

func (s *SQLite) FindTournament(ctx context.Context, id string) (TournamentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, start_time_ms, actual_start_time_ms, max_players,
    seats_per_table, starting_chips, prize_places, blind_schedule_json, status
FROM tournament WHERE id = ?
`, id)
	return scanTournament(row)
}

func (s *SQLite) ListTournamentsByStatus(ctx context.Context, status string) ([]TournamentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, start_time_ms, actual_start_time_ms, max_players,
    seats_per_table, starting_chips, prize_places, blind_schedule_json, status
FROM tournament WHERE status = ? ORDER BY start_time_ms
`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TournamentRecord
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertRegistration(ctx context.Context, r RegistrationRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tournament_registration (tournament_id, user_id, status)
VALUES (?, ?, ?)
ON CONFLICT (tournament_id, user_id) DO UPDATE SET status = excluded.status
`, r.TournamentID, r.UserID, r.Status)
	return err
}

func (s *SQLite) DeleteRegistration(ctx context.Context, tournamentID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tournament_registration WHERE tournament_id = ? AND user_id = ?`,
		tournamentID, userID)
	return err
}

func (s *SQLite) CountRegistrations(ctx context.Context, tournamentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tournament_registration WHERE tournament_id = ?`,
		tournamentID).Scan(&n)
	return n, err
}

func (s *SQLite) ListRegistrations(ctx context.Context, tournamentID string) ([]RegistrationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tournament_id, user_id, status FROM tournament_registration
WHERE tournament_id = ? ORDER BY user_id
`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RegistrationRecord
	for rows.Next() {
		var r RegistrationRecord
		if err := rows.Scan(&r.TournamentID, &r.UserID, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveGame(ctx context.Context, g GameRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO game (id, tournament_id, table_number, status, current_blind_level, small_blind, big_blind)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    status = excluded.status,
    current_blind_level = excluded.current_blind_level,
    small_blind = excluded.small_blind,
    big_blind = excluded.big_blind
`, g.ID, g.TournamentID, g.TableNumber, g.Status, g.CurrentBlindLevel, g.SmallBlind, g.BigBlind)
	return err
}

func (s *SQLite) FindGameWithSeats(ctx context.Context, gameID string) (GameRecord, []SeatRecord, error) {
	var g GameRecord
	err := s.db.QueryRowContext(ctx, `
SELECT id, tournament_id, table_number, status, current_blind_level, small_blind, big_blind
FROM game WHERE id = ?
`, gameID).Scan(&g.ID, &g.TournamentID, &g.TableNumber, &g.Status,
		&g.CurrentBlindLevel, &g.SmallBlind, &g.BigBlind)
	if errors.Is(err, sql.ErrNoRows) {
		return GameRecord{}, nil, ErrNotFound
	}
	if err != nil {
		return GameRecord{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT game_id, user_id, seat_number, chips, status FROM seat
WHERE game_id = ? ORDER BY seat_number
`, gameID)
	if err != nil {
		return GameRecord{}, nil, err
	}
	defer rows.Close()

	var seats []SeatRecord
	for rows.Next() {
		var seat SeatRecord
		if err := rows.Scan(&seat.GameID, &seat.UserID, &seat.SeatNumber, &seat.Chips, &seat.Status); err != nil {
			return GameRecord{}, nil, err
		}
		seats = append(seats, seat)
	}
	return g, seats, rows.Err()
}

func (s *SQLite) SaveSeat(ctx context.Context, seat SeatRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO seat (game_id, user_id, seat_number, chips, status)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (game_id, user_id) DO UPDATE SET
    seat_number = excluded.seat_number,
    chips = excluded.chips,
    status = excluded.status
`, seat.GameID, seat.UserID, seat.SeatNumber, seat.Chips, seat.Status)
	return err
}

// DeleteSeat removes a seat row when a player is moved to another table.
func (s *SQLite) DeleteSeat(ctx context.Context, gameID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM seat WHERE game_id = ? AND user_id = ?`, gameID, userID)
	return err
}

func (s *SQLite) AppendHandRecord(ctx context.Context, h HandRecord) error {
	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO hand_record (id, game_id, hand_number, pot, community_cards_json,
    history_json, winner_user_ids_json, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`, h.ID, h.GameID, h.HandNumber, h.Pot, h.CommunityCardsJSON,
		h.HistoryJSON, h.WinnerUserIDsJSON, createdAt.UnixMilli())
	return err
}

func (s *SQLite) SaveStandings(ctx context.Context, tournamentID string, standings []StandingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM standing WHERE tournament_id = ?`, tournamentID); err != nil {
		return err
	}
	for _, st := range standings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO standing (tournament_id, user_id, place) VALUES (?, ?, ?)`,
			tournamentID, st.UserID, st.Place); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Standings returns the final result, best place first.
func (s *SQLite) Standings(ctx context.Context, tournamentID string) ([]StandingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tournament_id, user_id, place FROM standing
WHERE tournament_id = ? ORDER BY place
`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StandingRecord
	for rows.Next() {
		var st StandingRecord
		if err := rows.Scan(&st.TournamentID, &st.UserID, &st.Place); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTournament(row rowScanner) (TournamentRecord, error) {
	var (
		t        TournamentRecord
		startMs  int64
		actualMs sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Name, &startMs, &actualMs, &t.MaxPlayers,
		&t.SeatsPerTable, &t.StartingChips, &t.PrizePlaces, &t.BlindScheduleJSON, &t.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return TournamentRecord{}, ErrNotFound
	}
	if err != nil {
		return TournamentRecord{}, err
	}
	t.StartTime = time.UnixMilli(startMs).UTC()
	if actualMs.Valid {
		at := time.UnixMilli(actualMs.Int64).UTC()
		t.ActualStartTime = &at
	}
	return t, nil
}

func nullableTimeMs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
