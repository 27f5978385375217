package config

import (
	"context"
	"log/slog"

	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/registry"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/sqlite"
)

// RegistryConfig locates the device registry database. An empty path disables it.
type RegistryConfig struct {
	Path string
}

func (c *RegistryConfig) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Path, "registry-path", "", "SQLite file holding the master_devices registry (or set REGISTRY_PATH env var)")
}

func (c *RegistryConfig) ApplyEnv() {
	envString(&c.Path, "REGISTRY_PATH")
}

// OpenRegistry opens the registry and applies pending migrations.
func OpenRegistry(ctx context.Context, log *slog.Logger, cfg RegistryConfig) (*registry.Store, func(), error) {
	noop := func() {}
	db, err := sqlite.Open(ctx, cfg.Path)
	if err != nil {
		return nil, noop, err
	}
	store, err := registry.NewStore(registry.StoreConfig{Logger: log, DB: db})
	if err != nil {
		db.Close()
		return nil, noop, err
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, noop, err
	}
	return store, func() { db.Close() }, nil
}
