package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"storefront/internal/util"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID serializes concurrent migrators through a postgres
// advisory lock.
const migrationLockID = 72_731_001

type migration struct {
	version int
	name    string
	up      string
	down    string
}

// loadMigrations parses migrations/NNNN_name.{up,down}.sql into version order.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	byVersion := map[int]*migration{}
	for _, file := range files {
		base := path.Base(file)
		stem, direction, ok := cutDirection(base)
		if !ok {
			return nil, fmt.Errorf("migration %s: expected NNNN_name.up.sql or NNNN_name.down.sql", base)
		}
		prefix, name, ok := strings.Cut(stem, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", base)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: invalid version: %w", base, err)
		}

		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, err
		}

		m, exists := byVersion[version]
		if !exists {
			m = &migration{version: version, name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.up = string(body)
		} else {
			m.down = string(body)
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" {
			return nil, fmt.Errorf("migration %04d_%s has no up script", m.version, m.name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func cutDirection(base string) (stem, direction string, ok bool) {
	for _, d := range []string{"up", "down"} {
		suffix := "." + d + ".sql"
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix), d, true
		}
	}
	return "", "", false
}

func (s *Store) ensureMigrationTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

func (s *Store) appliedVersions(ctx context.Context) (map[int]bool, error) {
	var versions []int
	if err := s.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// Migrate applies every pending migration, each in its own transaction,
// and returns the names of those applied.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	migrations, err := loadMigrations(migrationFS)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMigrationTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	logger := util.GetLogger()
	var applied []string

	for _, m := range migrations {
		m := m
		err := s.RunInTx(ctx, func(tx *Tx) error {
			if _, err := tx.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return err
			}
			var done bool
			if err := tx.tx.GetContext(ctx, &done,
				"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version); err != nil {
				return err
			}
			if done {
				return nil
			}
			if _, err := tx.tx.ExecContext(ctx, m.up); err != nil {
				return fmt.Errorf("migration %04d_%s: %w", m.version, m.name, err)
			}
			if _, err := tx.tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.version, m.name); err != nil {
				return err
			}
			applied = append(applied, fmt.Sprintf("%04d_%s", m.version, m.name))
			logger.Info("Migration applied", zap.Int("version", m.version), zap.String("name", m.name))
			return nil
		})
		if err != nil {
			return applied, err
		}
	}

	return applied, nil
}

// Rollback reverts the most recently applied migration and returns its
// name, or "" when nothing is applied.
func (s *Store) Rollback(ctx context.Context) (string, error) {
	migrations, err := loadMigrations(migrationFS)
	if err != nil {
		return "", err
	}
	if err := s.ensureMigrationTable(ctx); err != nil {
		return "", err
	}
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return "", err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if !applied[m.version] {
			continue
		}
		if m.down == "" {
			return "", fmt.Errorf("migration %04d_%s has no down script", m.version, m.name)
		}
		err := s.RunInTx(ctx, func(tx *Tx) error {
			if _, err := tx.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return err
			}
			if _, err := tx.tx.ExecContext(ctx, m.down); err != nil {
				return fmt.Errorf("rollback %04d_%s: %w", m.version, m.name, err)
			}
			_, err := tx.tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.version)
			return err
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%04d_%s", m.version, m.name), nil
	}

	return "", nil
}
