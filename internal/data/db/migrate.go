package db

import (
	types "github.com/statline/statline-backend/internal/domain"
	"gorm.io/gorm"
)

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{

		// =========================
		// Tenancy + auth
		// =========================
		&types.Project{},
		&types.APIToken{},

		// =========================
		// Telemetry
		// =========================
		&types.Event{},
		&types.Rollup{},

		// =========================
		// Background jobs
		// =========================
		&types.JobRun{},
	}
}

// TableNames lists the tables Models would create. The database checks
// compare it against the live schema.
func TableNames() []string {
	return []string{
		types.Project{}.TableName(),
		types.APIToken{}.TableName(),
		types.Event{}.TableName(),
		types.Rollup{}.TableName(),
		types.JobRun{}.TableName(),
	}
}

func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}
