package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pressly/goose/v3"

	"github.com/malbeclabs/sensorlake/pipeline"
)

type StoreConfig struct {
	Logger *slog.Logger
	DB     *sql.DB
	Clock  clockwork.Clock
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Store is the SQLite-backed device registry.
type Store struct {
	log *slog.Logger
	cfg StoreConfig
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{log: cfg.Logger, cfg: cfg}, nil
}

func (s *Store) provider() (*goose.Provider, error) {
	fsys, err := fs.Sub(pipeline.RegistryMigrationsFS, pipeline.RegistryMigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, s.cfg.DB, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return p, nil
}

// Migrate applies all pending registry migrations.
func (s *Store) Migrate(ctx context.Context) error {
	p, err := s.provider()
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		s.log.Info("registry: applied migration", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}
	s.log.Debug("registry: migrations up to date", "applied", len(results))
	return nil
}

// MigrationState describes one known migration.
type MigrationState struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

func (s *Store) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, MigrationState{
			Version:   st.Source.Version,
			Path:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

// Populate inserts devices that are not registered yet. Existing rows are left untouched.
// It returns the number of devices inserted.
func (s *Store) Populate(ctx context.Context, devices []Device) (int, error) {
	tx, err := s.cfg.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO master_devices (device_id, type, status, registered_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.cfg.Clock.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, d := range devices {
		res, err := stmt.ExecContext(ctx, d.ID, d.Type, d.Status, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert device %s: %w", d.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("registry: populated devices", "offered", len(devices), "inserted", inserted)
	return inserted, nil
}

func (s *Store) Lookup(ctx context.Context, deviceID string) (Device, bool, error) {
	d := Device{ID: deviceID}
	err := s.cfg.DB.QueryRowContext(ctx, `SELECT type, status FROM master_devices WHERE device_id = ?`, deviceID).Scan(&d.Type, &d.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, false, nil
	}
	if err != nil {
		return Device{}, false, fmt.Errorf("failed to look up device %s: %w", deviceID, err)
	}
	return d, true, nil
}

// Devices lists every registered device ordered by id.
func (s *Store) Devices(ctx context.Context) ([]Device, error) {
	rows, err := s.cfg.DB.QueryContext(ctx, `SELECT device_id, type, status FROM master_devices ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.Type, &d.Status); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return devices, nil
}
