package models

import (
	"time"

	"gorm.io/datatypes"
)

// NodeRevision is one physical version inside a revision series. Exactly one
// member of a series is latest at any time.
type NodeRevision struct {
	BaseModel

	SeriesID     string            `gorm:"type:uuid;not null;uniqueIndex:idx_series_version,priority:1;index" json:"series_id"`
	Version      int64             `gorm:"not null;uniqueIndex:idx_series_version,priority:2" json:"version"`
	IsLatest     bool              `gorm:"not null;default:false;index" json:"is_latest"`
	RevisionDate time.Time         `gorm:"not null" json:"revision_date"`

	Name        string            `gorm:"not null" json:"name"`
	Description string            `json:"description"`
	NodeType    string            `gorm:"type:varchar(64);not null" json:"node_type"`
	ParentID    *string           `gorm:"type:uuid" json:"parent_id"`
	Annotations datatypes.JSONMap `json:"annotations"`
}

// TableName overrides the default table name for GORM.
func (NodeRevision) TableName() string {
	return "node_revisions"
}
