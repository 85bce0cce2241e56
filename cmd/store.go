package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/places-cli/internal/store"
)

// initStore opens the configured database and applies pending migrations.
// Callers should defer Close.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.DBFile)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
