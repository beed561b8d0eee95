package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// ResourceAccess is a grant record: the set of access types a group holds on
// one resource. At most one record exists per (group, resource) pair.
type ResourceAccess struct {
	BaseModel

	GroupID      string         `gorm:"type:uuid;not null;uniqueIndex:idx_group_resource,priority:1" json:"group_id"`
	ResourceType string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_group_resource,priority:2;index" json:"resource_type"`
	ResourceID   string         `gorm:"type:uuid;not null;uniqueIndex:idx_group_resource,priority:3;index:idx_resource" json:"resource_id"`
	AccessTypes  datatypes.JSON `gorm:"not null" json:"access_types"`
}

// TableName overrides the default table name for GORM.
func (ResourceAccess) TableName() string {
	return "resource_access"
}

// AccessTypeSet decodes the grant's access-type set.
func (r *ResourceAccess) AccessTypeSet() (map[AccessType]struct{}, error) {
	set := make(map[AccessType]struct{})
	if len(r.AccessTypes) == 0 {
		return set, nil
	}

	var types []AccessType
	if err := json.Unmarshal(r.AccessTypes, &types); err != nil {
		return nil, err
	}
	for _, at := range types {
		set[at] = struct{}{}
	}
	return set, nil
}

// SetAccessTypes encodes the grant's access-type set.
func (r *ResourceAccess) SetAccessTypes(types []AccessType) error {
	raw, err := json.Marshal(types)
	if err != nil {
		return err
	}
	r.AccessTypes = datatypes.JSON(raw)
	return nil
}

// Holds reports whether the grant carries the requested access type.
func (r *ResourceAccess) Holds(accessType AccessType) (bool, error) {
	set, err := r.AccessTypeSet()
	if err != nil {
		return false, err
	}
	_, ok := set[accessType]
	return ok, nil
}
