package store

import (
	"context"

	"github.com/auditecx/auditecx-cli/internal/apperr"
)

// Open creates a Store for the configured driver and runs migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite", "":
		if dsn == "" {
			dsn = "auditecx.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn)
	default:
		return nil, apperr.Newf(apperr.KindInput, "store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
