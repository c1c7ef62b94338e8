// Package backup snapshots the lineup database and keeps a bounded set of
// snapshots on disk.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const stampLayout = "20060102-150405"

// snapshotName matches lineup-YYYYMMDD-HHMMSS.db.
var snapshotName = regexp.MustCompile(`^lineup-\d{8}-\d{6}\.db$`)

// Snapshot describes one snapshot file.
type Snapshot struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service writes and prunes snapshots of db under dir.
type Service struct {
	db     *sql.DB
	dir    string
	keep   int
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a snapshot service keeping the newest keep files.
// keep <= 0 disables pruning.
func NewService(db *sql.DB, dir string, keep int, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		dir:    dir,
		keep:   keep,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(slog.String("component", "backup")),
	}
}

// Create writes a consistent copy of the database with VACUUM INTO and then
// prunes old snapshots. A prune failure is logged, not returned.
func (s *Service) Create(ctx context.Context) (*Snapshot, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	created := s.now().Truncate(time.Second)
	name := "lineup-" + created.Format(stampLayout) + ".db"
	dest := filepath.Join(s.dir, name)
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("snapshot %s already exists", name)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	s.logger.Info("snapshot written", slog.String("filename", name), slog.Int64("size", info.Size()))

	if err := s.Prune(); err != nil {
		s.logger.Warn("pruning snapshots", slog.String("error", err.Error()))
	}
	return &Snapshot{Filename: name, Size: info.Size(), CreatedAt: created}, nil
}

// List returns the snapshots in dir, newest first. A missing directory is
// an empty list.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() || !snapshotName.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(e.Name(), "lineup-"), ".db")
		created, err := time.Parse(stampLayout, stamp)
		if err != nil {
			created = info.ModTime().UTC()
		}
		out = append(out, Snapshot{Filename: e.Name(), Size: info.Size(), CreatedAt: created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Prune removes every snapshot beyond the newest keep.
func (s *Service) Prune() error {
	if s.keep <= 0 {
		return nil
	}
	snaps, err := s.List()
	if err != nil {
		return err
	}
	if len(snaps) <= s.keep {
		return nil
	}
	var errs []error
	for _, old := range snaps[s.keep:] {
		if err := os.Remove(filepath.Join(s.dir, old.Filename)); err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("snapshot pruned", slog.String("filename", old.Filename))
	}
	return errors.Join(errs...)
}

// Optimize lets SQLite refresh its query planner statistics and folds the
// write-ahead log back into the main file.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}
	s.logger.Info("database optimized")
	return nil
}
