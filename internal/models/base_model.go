package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel provides the shared fields of every persisted resource: a stable
// opaque identifier, an etag that changes on every successful mutation, and a
// creation date stamped once.
type BaseModel struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Etag         string    `gorm:"type:uuid;not null" json:"etag"`
	CreationDate time.Time `gorm:"index" json:"creation_date"`
}

// BeforeCreate ensures identifier, etag and creation date are assigned.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Etag == "" {
		m.Etag = uuid.NewString()
	}
	if m.CreationDate.IsZero() {
		m.CreationDate = time.Now().UTC()
	}
	return nil
}

// TouchEtag regenerates the etag. Callers must invoke this on every mutation
// so stale readers can detect lost updates.
func (m *BaseModel) TouchEtag() {
	m.Etag = uuid.NewString()
}

// Meta exposes the shared resource fields to generic repository code.
func (m *BaseModel) Meta() *BaseModel {
	return m
}
