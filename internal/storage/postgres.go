package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gamewatch/pkg/logx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

var _ Store = (*pgStore)(nil)

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	b, err := migrationsFS.ReadFile("migrations/postgres.sql")
	if err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres store opened", logx.String("host", poolConfig.ConnConfig.Host))
	return &pgStore{pool: pool, log: log}, nil
}

func (s *pgStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

const pgPlayerCols = `id, name, region, puuid, last_checked, active_game_id, created_at, updated_at`

func scanPgPlayer(row pgx.Row) (Player, error) {
	var (
		p           Player
		lastChecked *time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Region, &p.PUUID, &lastChecked, &p.ActiveGameID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Player{}, err
	}
	if lastChecked != nil {
		p.LastChecked = lastChecked.UTC()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *pgStore) ListPlayers(ctx context.Context) ([]Player, error) {
	if s == nil || s.pool == nil {
		return nil, ErrDisabled
	}
	rows, err := s.pool.Query(ctx, `SELECT `+pgPlayerCols+` FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	out := []Player{}
	for rows.Next() {
		p, err := scanPgPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgStore) GetPlayer(ctx context.Context, id string) (Player, error) {
	if s == nil || s.pool == nil {
		return Player{}, ErrDisabled
	}
	p, err := scanPgPlayer(s.pool.QueryRow(ctx, `SELECT `+pgPlayerCols+` FROM players WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Player{}, ErrNotFound
	}
	return p, err
}

func (s *pgStore) AddPlayer(ctx context.Context, p Player) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrDisabled
	}
	if p.ID == "" {
		p.ID = PlayerID(p.Name, p.Region)
	}
	var lastChecked *time.Time
	if !p.LastChecked.IsZero() {
		t := p.LastChecked.UTC()
		lastChecked = &t
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO players (id, name, region, puuid, last_checked, active_game_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Region, p.PUUID, lastChecked, p.ActiveGameID,
	)
	if err != nil {
		return false, fmt.Errorf("add player: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgStore) UpdatePlayer(ctx context.Context, id string, u PlayerUpdate) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	if u.empty() {
		_, err := s.GetPlayer(ctx, id)
		return err
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 4)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if u.LastChecked != nil {
		sets = append(sets, "last_checked = "+arg(u.LastChecked.UTC()))
	}
	if u.PUUID != nil {
		sets = append(sets, "puuid = "+arg(*u.PUUID))
	}
	if u.ActiveGameID != nil {
		sets = append(sets, "active_game_id = "+arg(*u.ActiveGameID))
	}
	sets = append(sets, "updated_at = now()")
	where := arg(id)

	tag, err := s.pool.Exec(ctx, `UPDATE players SET `+strings.Join(sets, ", ")+` WHERE id = `+where, args...)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) AppendNotification(ctx context.Context, r NotificationRecord) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	r.normalize()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, sent_at, recipient, player_name, game_mode, game_type, channel, delivery_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.SentAt, r.Recipient, r.PlayerName, r.GameMode, r.GameType, r.Channel, r.DeliveryRef,
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (s *pgStore) ListNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	if s == nil || s.pool == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, sent_at, recipient, player_name, game_mode, game_type, channel, delivery_ref
		 FROM notifications
		 ORDER BY sent_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []NotificationRecord{}
	for rows.Next() {
		var r NotificationRecord
		if err := rows.Scan(&r.ID, &r.SentAt, &r.Recipient, &r.PlayerName, &r.GameMode, &r.GameType, &r.Channel, &r.DeliveryRef); err != nil {
			return nil, err
		}
		r.SentAt = r.SentAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
