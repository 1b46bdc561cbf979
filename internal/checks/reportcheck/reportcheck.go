// Package reportcheck registers checks over the report catalog. The catalog
// is YAML and can be overridden per deployment, so a broken definition is a
// configuration mistake, not a code bug; these checks surface it at startup
// instead of at the first request for that report.
package reportcheck

import (
	"context"
	"fmt"

	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/reports"
)

func init() {
	checks.MustRegister("reports.catalog", CheckCatalog, checks.TagReports)
	checks.MustRegister("reports.full_scan", CheckFullScan, checks.TagReports)
	checks.MustRegister("compatibility.sqlite_reports", CheckDriverCompatibility,
		checks.TagCompatibility, checks.TagReports)
}

// CheckCatalog loads the active catalog and compiles every measure.
func CheckCatalog(_ context.Context, _ *checks.Env) []checks.Message {
	cat, err := reports.Load()
	if err != nil {
		return []checks.Message{
			checks.Error("reports.E001", fmt.Sprintf("Report catalog failed to load: %v.", err)).
				WithHint("If REPORT_CATALOG_YAML is set, it must point at a readable statline catalog file."),
		}
	}
	var msgs []checks.Message
	for _, verr := range cat.Validate() {
		msgs = append(msgs, checks.Error("reports.E002", fmt.Sprintf("Report catalog: %v.", verr)))
	}
	return msgs
}

// CheckFullScan flags reports that aggregate every event of a project in
// the window. That is sometimes intended; mostly it is a forgotten kinds
// list on a copied definition.
func CheckFullScan(_ context.Context, _ *checks.Env) []checks.Message {
	cat, err := reports.Load()
	if err != nil {
		// reports.catalog already reported the load failure.
		return nil
	}
	var msgs []checks.Message
	for _, def := range cat.Reports {
		if len(def.Kinds) > 0 || len(def.GroupBy) > 0 {
			continue
		}
		msgs = append(msgs, checks.Info("reports.I003",
			fmt.Sprintf("Report %q has no kinds filter and no group_by; it scans every event in the window.", def.Name)).
			WithObj(def.Name).
			WithHint("Add kinds or group_by if the full scan is not intended."))
	}
	return msgs
}

// CheckDriverCompatibility warns when the configured driver cannot execute
// the catalog. The aggregates serialize to postgres syntax.
func CheckDriverCompatibility(_ context.Context, env *checks.Env) []checks.Message {
	if env.Cfg.IsPostgres() {
		return nil
	}
	return []checks.Message{
		checks.Warning("compatibility.W001",
			fmt.Sprintf("DB_DRIVER %q cannot run reports; the catalog compiles to postgres aggregate syntax.", env.Cfg.DB.Driver)).
			WithHint("Report endpoints will return errors. Use postgres for any deployment that serves reports."),
	}
}
