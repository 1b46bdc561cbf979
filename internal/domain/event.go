package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// Session lifecycle
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	// Navigation
	EventPageView = "page_view" // props: {path, referrer}
	EventAction   = "action"    // props: {name, target}
	// Measurements
	EventMetric    = "metric"     // value carries the sample, duration_ms the window
	EventTiming    = "timing"     // duration_ms carries the measurement
	EventFlagCheck = "flag_check" // ok carries the outcome, bits the variant mask
	// Diagnostics
	EventClientError = "client_error" // props: {message, stack?}
	EventClientPerf  = "client_perf"  // props: {ttfb_ms, render_ms, api_ms}
)

// KnownEventKinds lists every kind the ingest path accepts. Unknown kinds are
// dropped, not rejected, so old SDKs keep working after a kind is retired.
var KnownEventKinds = map[string]bool{
	EventSessionStarted: true,
	EventSessionEnded:   true,
	EventPageView:       true,
	EventAction:         true,
	EventMetric:         true,
	EventTiming:         true,
	EventFlagCheck:      true,
	EventClientError:    true,
	EventClientPerf:     true,
}

type Event struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_project_client_event,unique,priority:1" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	// SDK-provided idempotency key; retried batches dedupe on (project, client_event_id).
	ClientEventID string `gorm:"column:client_event_id;not null;index:idx_project_client_event,unique,priority:2" json:"client_event_id"`
	Kind          string `gorm:"column:kind;not null;index" json:"kind"`
	Source        string `gorm:"column:source;index" json:"source,omitempty"`
	// Correlates events emitted by the same SDK session.
	SessionID uuid.UUID `gorm:"type:uuid;column:session_id;index" json:"session_id"`
	// Value/DurationMS are the numeric pair the statistical reports regress over.
	Value      *float64 `gorm:"column:value" json:"value,omitempty"`
	DurationMS *float64 `gorm:"column:duration_ms" json:"duration_ms,omitempty"`
	// OK is the per-event outcome; Bits is the SDK capability/variant bitmap.
	OK   *bool `gorm:"column:ok" json:"ok,omitempty"`
	Bits int64 `gorm:"column:bits;not null;default:0" json:"bits"`
	// When the action happened (client clock). CreatedAt is server receive time.
	OccurredAt time.Time      `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	Props      datatypes.JSON `gorm:"type:jsonb;column:props" json:"props"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Event) TableName() string { return "event" }
