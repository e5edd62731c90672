package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tax-engine/internal/engine"
	"github.com/sells-group/tax-engine/internal/ledger"
	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/taxyear"
)

// recordInputs is the canonical input payload hashed into a ledger
// snapshot.
type recordInputs struct {
	Profile *model.TaxpayerProfile `json:"profile"`
	Sources []model.IncomeSource   `json:"sources"`
}

// initEngine builds a calculation engine from the built-in tax tables plus
// any override directory from config.
func initEngine() (*engine.Engine, error) {
	registry, err := taxyear.NewRegistry()
	if err != nil {
		return nil, eris.Wrap(err, "load built-in tax tables")
	}
	if cfg.Tables.Dir != "" {
		if err := registry.LoadDir(cfg.Tables.Dir); err != nil {
			return nil, eris.Wrapf(err, "load tax tables from %s", cfg.Tables.Dir)
		}
	}
	return engine.New(registry), nil
}

// initStore opens the snapshot store named by config.
func initStore(ctx context.Context) (ledger.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return ledger.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return ledger.NewPostgres(ctx, cfg.Store.DatabaseURL, &ledger.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initLedger opens the store, migrates it, and wraps it in a signing Ledger.
func initLedger(ctx context.Context) (*ledger.Ledger, ledger.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}
	l, err := ledger.New(st, []byte(cfg.Ledger.SigningKey))
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return l, st, nil
}
