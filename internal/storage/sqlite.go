package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gamewatch/pkg/logx"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations/sqlite.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const sqlitePlayerCols = `id, name, region, puuid, last_checked, active_game_id, created_at, updated_at`

func scanSQLitePlayer(sc interface{ Scan(...any) error }) (Player, error) {
	var (
		p                         Player
		lastChecked, created, upd string
	)
	if err := sc.Scan(&p.ID, &p.Name, &p.Region, &p.PUUID, &lastChecked, &p.ActiveGameID, &created, &upd); err != nil {
		return Player{}, err
	}
	p.LastChecked = parseTime(lastChecked)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(upd)
	return p, nil
}

func (s *sqliteStore) ListPlayers(ctx context.Context) ([]Player, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqlitePlayerCols+` FROM players ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Player{}
	for rows.Next() {
		p, err := scanSQLitePlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetPlayer(ctx context.Context, id string) (Player, error) {
	if s == nil || s.db == nil {
		return Player{}, ErrDisabled
	}
	p, err := scanSQLitePlayer(s.db.QueryRowContext(ctx, `SELECT `+sqlitePlayerCols+` FROM players WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Player{}, ErrNotFound
	}
	return p, err
}

func (s *sqliteStore) AddPlayer(ctx context.Context, p Player) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	if p.ID == "" {
		p.ID = PlayerID(p.Name, p.Region)
	}
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO players(id, name, region, puuid, last_checked, active_game_id, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		p.ID, p.Name, p.Region, p.PUUID, formatTime(p.LastChecked), p.ActiveGameID, now, now,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) UpdatePlayer(ctx context.Context, id string, u PlayerUpdate) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if u.empty() {
		_, err := s.GetPlayer(ctx, id)
		return err
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if u.LastChecked != nil {
		sets = append(sets, "last_checked = ?")
		args = append(args, formatTime(*u.LastChecked))
	}
	if u.PUUID != nil {
		sets = append(sets, "puuid = ?")
		args = append(args, *u.PUUID)
	}
	if u.ActiveGameID != nil {
		sets = append(sets, "active_game_id = ?")
		args = append(args, *u.ActiveGameID)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()), id)

	res, err := s.db.ExecContext(ctx, `UPDATE players SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) AppendNotification(ctx context.Context, r NotificationRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	r.normalize()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(id, sent_at, recipient, player_name, game_mode, game_type, channel, delivery_ref)
		 VALUES(?,?,?,?,?,?,?,?)`,
		r.ID.String(), formatTime(r.SentAt), r.Recipient, r.PlayerName, r.GameMode, r.GameType, r.Channel, r.DeliveryRef,
	)
	return err
}

func (s *sqliteStore) ListNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sent_at, recipient, player_name, game_mode, game_type, channel, delivery_ref
		 FROM notifications ORDER BY sent_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []NotificationRecord{}
	for rows.Next() {
		var (
			r          NotificationRecord
			id, sentAt string
		)
		if err := rows.Scan(&id, &sentAt, &r.Recipient, &r.PlayerName, &r.GameMode, &r.GameType, &r.Channel, &r.DeliveryRef); err != nil {
			return nil, err
		}
		r.ID, _ = uuid.Parse(id)
		r.SentAt = parseTime(sentAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
