package models

import "gorm.io/datatypes"

// NodeAnnotations stores the open key/value annotation map attached 1:1 to a
// node. It carries its own etag, kept in sync with the node's on update.
type NodeAnnotations struct {
	BaseModel

	NodeID string            `gorm:"type:uuid;not null;uniqueIndex" json:"node_id"`
	Values datatypes.JSONMap `json:"values"`
}

// TableName overrides the default table name for GORM.
func (NodeAnnotations) TableName() string {
	return "node_annotations"
}
