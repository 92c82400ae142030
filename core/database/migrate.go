package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/scanbot/core/logger"
)

const previewFiles = 6

// migrationFile is one *.up.sql file and the version encoded in its name.
type migrationFile struct {
	name    string
	version uint64
}

type migrationSet []migrationFile

// loadMigrationSet lists the up migrations in dir ordered by version.
// Files without a numeric prefix are ignored.
func loadMigrationSet(dir string) migrationSet {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var set migrationSet
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(e.Name(), "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		set = append(set, migrationFile{name: e.Name(), version: v})
	}
	sort.Slice(set, func(i, j int) bool { return set[i].version < set[j].version })
	return set
}

// between returns the names of files with from < version <= to.
func (s migrationSet) between(from, to uint64) []string {
	var out []string
	for _, f := range s {
		if f.version > from && f.version <= to {
			out = append(out, f.name)
		}
	}
	return out
}

func (s migrationSet) names() []string {
	return s.between(0, ^uint64(0))
}

func fileAttrs(names []string) []slog.Attr {
	attrs := []slog.Attr{slog.Int("count", len(names))}
	preview, truncated := logger.SummarizeStrings(names, previewFiles)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// RunMigrations applies every pending up migration. A dirty schema is
// reported and left for manual repair.
func RunMigrations(cfg Config) error {
	ctx := logger.Background()
	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("migrations dir: %w", err)
	}
	set := loadMigrationSet(dir)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.resolve",
		append(fileAttrs(set.names()), slog.String("path", dir))...)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.URL())
	if err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "migrate.init",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelWarn, "migrate.close",
				slog.Any("source_err", srcErr),
				slog.Any("db_err", dbErr),
			)
		}
	}()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "migrate.dirty",
			slog.Uint64("version", uint64(from)),
		)
		return fmt.Errorf("schema version %d is dirty; fix it and force the version", from)
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "migrate.apply",
			slog.String("status", "fail"),
			slog.Uint64("from_ver", uint64(from)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}

	to, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	applied := set.between(uint64(from), uint64(to))
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "migrate.summary",
		append(fileAttrs(applied),
			slog.String("status", "ok"),
			slog.Uint64("from_ver", uint64(from)),
			slog.Uint64("to_ver", uint64(to)),
			slog.Duration("duration", logger.Took(start)),
		)...)
	return nil
}

func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
