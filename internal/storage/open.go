package storage

import (
	"context"
	"errors"
	"strings"

	"gamewatch/pkg/logx"
)

// Store is the persistence API used by the monitor, dispatcher and CLI.
type Store interface {
	ListPlayers(ctx context.Context) ([]Player, error)
	GetPlayer(ctx context.Context, id string) (Player, error)
	// AddPlayer inserts p unless a player with the same ID exists.
	// created reports whether a row was written.
	AddPlayer(ctx context.Context, p Player) (created bool, err error)
	UpdatePlayer(ctx context.Context, id string, u PlayerUpdate) error

	AppendNotification(ctx context.Context, r NotificationRecord) error
	// ListNotifications returns the newest records first; limit <= 0 means a default page.
	ListNotifications(ctx context.Context, limit int) ([]NotificationRecord, error)

	Close() error
}

// Open initializes the configured store.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, ErrDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "postgres", "pgx":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
