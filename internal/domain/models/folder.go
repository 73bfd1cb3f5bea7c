package models

import (
	"time"

	"github.com/google/uuid"
)

// Folder is a named node in the parent-referencing folder forest
type Folder struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	ParentID   *string   `json:"parent_id" db:"parent_id"` // NULL = root level
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
}

// CreateFolderParams carries the fields the storage collaborator needs to create a folder
type CreateFolderParams struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

// NewFolder builds a folder with a fresh id and equal timestamps
func NewFolder(name string, parentID *string, now time.Time) *Folder {
	return &Folder{
		ID:         uuid.NewString(),
		Name:       name,
		ParentID:   NormalizeParentID(parentID),
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// NormalizeParentID maps every "no parent" encoding to nil.
// Stored data may round-trip a missing parent as "", "undefined" or "null".
func NormalizeParentID(id *string) *string {
	if id == nil {
		return nil
	}
	switch *id {
	case "", "undefined", "null":
		return nil
	}
	v := *id
	return &v
}

// SameParent compares two parent references after normalization
func SameParent(a, b *string) bool {
	a, b = NormalizeParentID(a), NormalizeParentID(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
