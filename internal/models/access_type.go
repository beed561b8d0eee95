package models

// AccessType enumerates the capabilities a grant can carry.
type AccessType string

const (
	AccessRead   AccessType = "READ"
	AccessChange AccessType = "CHANGE"
	AccessShare  AccessType = "SHARE"
)

// DefaultCreatorAccess is the set granted to a creator's group on create.
func DefaultCreatorAccess() []AccessType {
	return []AccessType{AccessRead, AccessChange, AccessShare}
}
