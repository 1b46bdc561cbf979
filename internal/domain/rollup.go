package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rollup is one project-day-kind aggregate row, recomputed by the rollup.day
// job. Nullable columns stay NULL when the day had no measurable events.
type Rollup struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_rollup_project_day_kind,unique,priority:1" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	Day       time.Time `gorm:"column:day;type:date;not null;index:idx_rollup_project_day_kind,unique,priority:2" json:"day"`
	Kind      string    `gorm:"column:kind;not null;index:idx_rollup_project_day_kind,unique,priority:3" json:"kind"`

	Count    int64 `gorm:"column:count;not null;default:0" json:"count"`
	Sessions int64 `gorm:"column:sessions;not null;default:0" json:"sessions"`

	ValueSum    *float64 `gorm:"column:value_sum" json:"value_sum,omitempty"`
	ValueAvg    *float64 `gorm:"column:value_avg" json:"value_avg,omitempty"`
	DurationAvg *float64 `gorm:"column:duration_avg" json:"duration_avg,omitempty"`

	// OKAll/OKAny are BOOL_AND/BOOL_OR over Event.OK; BitsAll/BitsAny are
	// BIT_AND/BIT_OR over Event.Bits.
	OKAll   *bool  `gorm:"column:ok_all" json:"ok_all,omitempty"`
	OKAny   *bool  `gorm:"column:ok_any" json:"ok_any,omitempty"`
	BitsAll *int64 `gorm:"column:bits_all" json:"bits_all,omitempty"`
	BitsAny *int64 `gorm:"column:bits_any" json:"bits_any,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Rollup) TableName() string { return "rollup" }
