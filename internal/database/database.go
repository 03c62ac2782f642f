package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"casinolab/internal/config"
	"casinolab/internal/game"
)

// Service is the Postgres store for chat and game history.
type Service interface {
	game.ChatStore
	game.HistoryStore

	GetRound(ctx context.Context, roundID string) (game.RoundRecord, error)
	RecentRounds(ctx context.Context, limit int) ([]game.RoundRecord, error)
	ListSaltReveals(ctx context.Context, limit int) ([]game.SaltReveal, error)
	UserOutcomes(ctx context.Context, userID string, limit int) ([]game.OutcomeResult, error)

	// Health returns a map of health status information.
	Health() map[string]string

	// DB exposes the pool for migrations.
	DB() *sql.DB

	Close() error
}

type service struct {
	db   *sql.DB
	name string
}

// New opens the pool and checks it with a ping.
func New(cfg config.Database) (Service, error) {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Printf("[DB] Connected to %s@%s:%s/%s", cfg.Username, cfg.Host, cfg.Port, cfg.Name)
	return &service{db: db, name: cfg.Name}, nil
}

func (s *service) DB() *sql.DB {
	return s.db
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Printf("[DB] Health check failed: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnected from database: %s", s.name)
	return s.db.Close()
}

func (s *service) SaveChatMessage(ctx context.Context, m game.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Room, m.UserID, m.Body, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *service) RecentChatMessages(ctx context.Context, room string, limit int) ([]game.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room, user_id, body, flagged, deleted, COALESCE(moderated_by, ''), created_at
		FROM (
			SELECT * FROM chat_messages
			WHERE room = $1 AND NOT deleted
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	msgs := []game.ChatMessage{}
	for rows.Next() {
		var m game.ChatMessage
		if err := rows.Scan(&m.ID, &m.Room, &m.UserID, &m.Body, &m.Flagged, &m.Deleted, &m.ModeratedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *service) ModerateChatMessage(ctx context.Context, id string, action game.ModerationAction, moderator string) (game.ChatMessage, error) {
	var column string
	switch action {
	case game.ModerationDelete:
		column = "deleted"
	case game.ModerationFlag:
		column = "flagged"
	default:
		return game.ChatMessage{}, fmt.Errorf("%w: moderation action %q", game.ErrInvalidParams, action)
	}

	var m game.ChatMessage
	err := s.db.QueryRowContext(ctx, `
		UPDATE chat_messages SET `+column+` = TRUE, moderated_by = $2
		WHERE id::text = $1
		RETURNING id, room, user_id, body, flagged, deleted, COALESCE(moderated_by, ''), created_at`,
		id, moderator,
	).Scan(&m.ID, &m.Room, &m.UserID, &m.Body, &m.Flagged, &m.Deleted, &m.ModeratedBy, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return game.ChatMessage{}, game.ErrMessageNotFound
	}
	if err != nil {
		return game.ChatMessage{}, fmt.Errorf("moderate chat message: %w", err)
	}
	return m, nil
}

func (s *service) SaveOutcome(ctx context.Context, o game.OutcomeResult) error {
	detail, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes (id, user_id, game, stake, multiplier, payout, win, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.UserID, string(o.Game), o.Stake, o.Multiplier, o.Payout, o.Win, string(detail), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (s *service) UserOutcomes(ctx context.Context, userID string, limit int) ([]game.OutcomeResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT detail FROM outcomes
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []game.OutcomeResult{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		var o game.OutcomeResult
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			return nil, fmt.Errorf("decode outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func (s *service) SaveRound(ctx context.Context, r game.RoundRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crash_rounds (round_id, commitment, seed, salt_commitment, crash_point,
			wagers, total_staked, total_paid, started_at, crashed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (round_id) DO NOTHING`,
		r.RoundID, r.Commitment, r.Seed, r.SaltCommitment, r.CrashPoint,
		r.Wagers, r.TotalStaked, r.TotalPaid, r.StartedAt, r.CrashedAt)
	if err != nil {
		return fmt.Errorf("insert crash round: %w", err)
	}
	return nil
}

const roundColumns = `round_id, commitment, seed, salt_commitment, crash_point,
	wagers, total_staked, total_paid, started_at, crashed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (game.RoundRecord, error) {
	var r game.RoundRecord
	err := row.Scan(&r.RoundID, &r.Commitment, &r.Seed, &r.SaltCommitment, &r.CrashPoint,
		&r.Wagers, &r.TotalStaked, &r.TotalPaid, &r.StartedAt, &r.CrashedAt)
	return r, err
}

func (s *service) GetRound(ctx context.Context, roundID string) (game.RoundRecord, error) {
	r, err := scanRound(s.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM crash_rounds WHERE round_id = $1`, roundID))
	if errors.Is(err, sql.ErrNoRows) {
		return game.RoundRecord{}, game.ErrRoundNotFound
	}
	if err != nil {
		return game.RoundRecord{}, fmt.Errorf("get crash round: %w", err)
	}
	return r, nil
}

func (s *service) RecentRounds(ctx context.Context, limit int) ([]game.RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM crash_rounds ORDER BY crashed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query crash rounds: %w", err)
	}
	defer rows.Close()

	rounds := []game.RoundRecord{}
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crash round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

func (s *service) SaveSaltReveal(ctx context.Context, r game.SaltReveal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salt_reveals (commitment, salt, rounds, activated_at, retired_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (commitment) DO NOTHING`,
		r.Commitment, r.Salt, r.Rounds, r.ActivatedAt, r.RetiredAt)
	if err != nil {
		return fmt.Errorf("insert salt reveal: %w", err)
	}
	return nil
}

func (s *service) ListSaltReveals(ctx context.Context, limit int) ([]game.SaltReveal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT commitment, salt, rounds, activated_at, retired_at
		FROM salt_reveals
		ORDER BY retired_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query salt reveals: %w", err)
	}
	defer rows.Close()

	reveals := []game.SaltReveal{}
	for rows.Next() {
		var r game.SaltReveal
		if err := rows.Scan(&r.Commitment, &r.Salt, &r.Rounds, &r.ActivatedAt, &r.RetiredAt); err != nil {
			return nil, fmt.Errorf("scan salt reveal: %w", err)
		}
		reveals = append(reveals, r)
	}
	return reveals, rows.Err()
}
