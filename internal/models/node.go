package models

// Node is a hierarchical, access-controlled resource. Each node has at most
// one parent; free-form fields live in the associated NodeAnnotations record.
type Node struct {
	BaseModel

	Name        string  `gorm:"not null;index" json:"name"`
	Description string  `json:"description"`
	NodeType    string  `gorm:"type:varchar(64);not null;index" json:"node_type"`
	ParentID    *string `gorm:"type:uuid;index" json:"parent_id"`
	CreatedByID *string `gorm:"type:uuid;index" json:"created_by_id"`
}

// TableName overrides the default table name for GORM.
func (Node) TableName() string {
	return "nodes"
}
