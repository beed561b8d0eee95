package repo

import (
	"time"

	"github.com/openbiolabs/noderepo/internal/models"
)

// DTO is the external-facing side of the repository's dual representation.
// Implementations expose the shared resource fields through accessors so the
// generic store can stamp server-assigned values after persistence.
type DTO interface {
	GetID() string
	SetID(id string)
	GetEtag() string
	SetEtag(etag string)
	GetCreationDate() time.Time
	SetCreationDate(t time.Time)
}

// Record is the persisted side of the dual representation. Any struct
// embedding models.BaseModel satisfies it through the Meta accessor.
type Record interface {
	Meta() *models.BaseModel
}

// Mapper translates between a DTO kind and its persisted record kind with two
// pure shallow-copy functions. Both types are created through factory methods
// so the store makes no assumptions about construction.
type Mapper[D DTO, R Record] interface {
	// ResourceType returns the registered type tag used in grant records.
	ResourceType() string
	NewDTO() D
	NewRecord() R
	// ToDTO shallow-copies record fields onto the DTO, including the
	// server-assigned id, etag and creation date.
	ToDTO(record R, dto D) error
	// FromDTO shallow-copies DTO fields onto the record. Server-assigned
	// fields on the record are left untouched. Invalid caller data must be
	// reported as an InvalidModel error.
	FromDTO(dto D, record R) error
}
