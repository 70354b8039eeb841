package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// gooseUp is a seam for testing goose.UpContext.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Up applies every pending migration in dir using the given goose dialect.
func Up(ctx context.Context, db *sql.DB, dialect, dir string) error {
	goose.SetBaseFS(Migrations)
	goose.SetLogger(zapLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect %s: %w", dialect, err)
	}
	if err := gooseUp(ctx, db, dir); err != nil {
		return fmt.Errorf("apply %s migrations: %w", dir, err)
	}
	return nil
}

// zapLogger routes goose output through the global zap logger.
type zapLogger struct{}

func (zapLogger) Fatalf(format string, v ...interface{}) {
	zap.S().Fatalf(format, v...)
}

func (zapLogger) Printf(format string, v ...interface{}) {
	zap.S().Infof(format, v...)
}
