package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Group names reserved by the access-control index. Individual groups embed
// the owning user's id so name uniqueness makes lazy creation idempotent.
const (
	PublicGroupName           = "public"
	IndividualGroupNamePrefix = "individual:"
)

// UserGroup is the grant target of the access-control index. Two kinds are
// distinguished: the single public group (implicit member: everyone, including
// anonymous callers) and per-user individual groups created lazily on first use.
type UserGroup struct {
	BaseModel

	Name           string         `gorm:"uniqueIndex;not null" json:"name"`
	IsPublic       bool           `gorm:"default:false" json:"is_public"`
	IsIndividual   bool           `gorm:"default:false" json:"is_individual"`
	CreatableTypes datatypes.JSON `json:"creatable_types"`

	Users []User `gorm:"many2many:group_users;" json:"users,omitempty"`
}

// TableName overrides the default table name for GORM.
func (UserGroup) TableName() string {
	return "user_groups"
}

// IndividualGroupName derives the reserved group name for a user.
func IndividualGroupName(userID string) string {
	return IndividualGroupNamePrefix + userID
}

// CreatableTypeSet decodes the resource-type names this group may instantiate.
// An empty set means no restriction.
func (g *UserGroup) CreatableTypeSet() (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if len(g.CreatableTypes) == 0 {
		return set, nil
	}

	var names []string
	if err := json.Unmarshal(g.CreatableTypes, &names); err != nil {
		return nil, err
	}
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set, nil
}

// SetCreatableTypes encodes the resource-type names this group may instantiate.
func (g *UserGroup) SetCreatableTypes(names []string) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	g.CreatableTypes = datatypes.JSON(raw)
	return nil
}
