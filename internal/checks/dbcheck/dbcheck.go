// Package dbcheck registers checks that reach into the live database. They
// carry TagDatabase, so runs skip them unless the caller asked for database
// checks and opened a connection.
package dbcheck

import (
	"context"
	"fmt"

	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/data/db"
)

func init() {
	checks.MustRegister("database.connectivity", CheckConnectivity, checks.TagDatabase)
	checks.MustRegister("database.extensions", CheckExtensions, checks.TagDatabase)
	checks.MustRegister("database.schema", CheckSchema, checks.TagDatabase)
}

// CheckConnectivity verifies the configured database answers a ping.
func CheckConnectivity(ctx context.Context, env *checks.Env) []checks.Message {
	if env.DB == nil {
		return []checks.Message{
			checks.Error("database.E001", "Database checks requested but no connection was opened.").
				WithHint("Verify DB_DSN; the check command opens the database before running database checks."),
		}
	}
	sqlDB, err := env.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return []checks.Message{
			checks.Error("database.E001", fmt.Sprintf("Database is unreachable: %v.", err)).
				WithHint("Verify DB_DSN and that the database accepts connections."),
		}
	}
	return nil
}

// CheckExtensions verifies uuid-ossp is installed. The schema defaults
// primary keys through it, so inserts fail without it even though
// migrations appear to succeed.
func CheckExtensions(ctx context.Context, env *checks.Env) []checks.Message {
	if env.DB == nil || !env.Cfg.IsPostgres() {
		return nil
	}
	var installed bool
	err := env.DB.WithContext(ctx).
		Raw(`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'uuid-ossp')`).
		Scan(&installed).Error
	if err != nil {
		return []checks.Message{
			checks.Warning("database.W002", fmt.Sprintf("Could not inspect installed extensions: %v.", err)),
		}
	}
	if installed {
		return nil
	}
	return []checks.Message{
		checks.Warning("database.W002", "Extension uuid-ossp is not installed.").
			WithHint("Run statline migrate, or CREATE EXTENSION \"uuid-ossp\" as a superuser."),
	}
}

// CheckSchema reports every model table missing from the live schema.
func CheckSchema(ctx context.Context, env *checks.Env) []checks.Message {
	if env.DB == nil {
		return nil
	}
	migrator := env.DB.WithContext(ctx).Migrator()
	var msgs []checks.Message
	for _, table := range db.TableNames() {
		if migrator.HasTable(table) {
			continue
		}
		msgs = append(msgs, checks.Warning("database.W003",
			fmt.Sprintf("Table %q does not exist.", table)).
			WithObj(table).
			WithHint("Run statline migrate to create missing tables."))
	}
	return msgs
}
