// Package progressstore persists the progress ledger in SQLite. The
// ephemeral retention mode keeps everything in memory so the games run
// without touching disk.
package progressstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gulfhit/littletalk/internal/config"
	"github.com/gulfhit/littletalk/internal/progress"
	_ "modernc.org/sqlite"
)

// Store holds per-game ledgers and unlock streaks.
type Store struct {
	db    *sql.DB
	cfg   config.ProgressStoreConfig
	log   *slog.Logger
	clock func() time.Time

	memLedger map[string]map[string]progress.Entry
	memStreak map[string]int
}

// Open initializes the progress store according to config.
func Open(ctx context.Context, cfg config.ProgressStoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{
			cfg:       cfg,
			log:       log,
			clock:     time.Now,
			memLedger: make(map[string]map[string]progress.Entry),
			memStreak: make(map[string]int),
		}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("progress store vacuum failed", slog.String("error", err.Error()))
		}
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS progress (
    game TEXT NOT NULL,
    item_key TEXT NOT NULL,
    level INTEGER NOT NULL,
    correct_count INTEGER NOT NULL,
    mastered INTEGER NOT NULL,
    unlocked INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY(game, item_key)
);
CREATE TABLE IF NOT EXISTS game_meta (
    game TEXT PRIMARY KEY,
    streak INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the stored ledger for a game, empty when nothing has been
// recorded yet.
func (s *Store) Load(ctx context.Context, game string) (map[string]progress.Entry, error) {
	if s.db == nil {
		ledger := make(map[string]progress.Entry, len(s.memLedger[game]))
		for k, v := range s.memLedger[game] {
			ledger[k] = v
		}
		return ledger, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_key, level, correct_count, mastered, unlocked
		 FROM progress WHERE game = ?`, game)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	defer rows.Close()

	ledger := make(map[string]progress.Entry)
	for rows.Next() {
		var key string
		var e progress.Entry
		if err := rows.Scan(&key, &e.Level, &e.CorrectCount, &e.Mastered, &e.Unlocked); err != nil {
			return nil, fmt.Errorf("scan progress row: %w", err)
		}
		ledger[key] = e
	}
	return ledger, rows.Err()
}

// Save upserts the full ledger for a game in one transaction.
func (s *Store) Save(ctx context.Context, game string, ledger map[string]progress.Entry) error {
	if s.db == nil {
		copied := make(map[string]progress.Entry, len(ledger))
		for k, v := range ledger {
			copied[k] = v
		}
		s.memLedger[game] = copied
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.clock().UTC()
	for key, e := range ledger {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO progress(game, item_key, level, correct_count, mastered, unlocked, updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(game, item_key) DO UPDATE SET
			     level=excluded.level, correct_count=excluded.correct_count,
			     mastered=excluded.mastered, unlocked=excluded.unlocked,
			     updated_at=excluded.updated_at`,
			game, key, e.Level, e.CorrectCount, e.Mastered, e.Unlocked, now)
		if err != nil {
			return fmt.Errorf("save progress for %s/%s: %w", game, key, err)
		}
	}
	return tx.Commit()
}

// Streak returns the stored unlock streak for a game, zero when unset.
func (s *Store) Streak(ctx context.Context, game string) (int, error) {
	if s.db == nil {
		return s.memStreak[game], nil
	}
	var streak int
	err := s.db.QueryRowContext(ctx,
		`SELECT streak FROM game_meta WHERE game = ?`, game).Scan(&streak)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load streak: %w", err)
	}
	return streak, nil
}

// SetStreak stores the unlock streak for a game.
func (s *Store) SetStreak(ctx context.Context, game string, streak int) error {
	if s.db == nil {
		s.memStreak[game] = streak
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_meta(game, streak, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(game) DO UPDATE SET streak=excluded.streak, updated_at=excluded.updated_at`,
		game, streak, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}

// ResetGame wipes all progress and the streak for a game.
func (s *Store) ResetGame(ctx context.Context, game string) error {
	if s.db == nil {
		delete(s.memLedger, game)
		delete(s.memStreak, game)
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE game = ?`, game); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM game_meta WHERE game = ?`, game); err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	return tx.Commit()
}
