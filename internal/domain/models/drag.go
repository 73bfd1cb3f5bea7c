package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DragKind names the kind of entity carried by a drag gesture
type DragKind string

const (
	DragConversation DragKind = "conversation"
	DragFolder       DragKind = "folder"
)

// DragPayload is what is being dragged: a ConversationPayload or a FolderPayload.
type DragPayload interface {
	Kind() DragKind
	EntityID() string
}

// ConversationPayload drags a conversation
type ConversationPayload struct {
	ID string
}

// FolderPayload drags a folder
type FolderPayload struct {
	ID string
}

func (p ConversationPayload) Kind() DragKind   { return DragConversation }
func (p ConversationPayload) EntityID() string { return p.ID }
func (p FolderPayload) Kind() DragKind         { return DragFolder }
func (p FolderPayload) EntityID() string       { return p.ID }

// ParseDragPayload is the single place where an untyped {type, id} pair
// becomes a payload. Callers never see the raw form again.
func ParseDragPayload(kind, id string) (DragPayload, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("drag payload requires an id")
	}
	switch DragKind(strings.ToLower(strings.TrimSpace(kind))) {
	case DragConversation:
		return ConversationPayload{ID: id}, nil
	case DragFolder:
		return FolderPayload{ID: id}, nil
	}
	return nil, fmt.Errorf("unknown drag payload type %q", kind)
}

// DragPayloadJSON is the wire form of a payload
type DragPayloadJSON struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// MarshalDragPayload renders p in its wire form
func MarshalDragPayload(p DragPayload) ([]byte, error) {
	return json.Marshal(DragPayloadJSON{Type: string(p.Kind()), ID: p.EntityID()})
}

// DragKey identifies a draggable element
func DragKey(p DragPayload) string {
	return string(p.Kind()) + ":" + p.EntityID()
}

// DropTarget is a folder node or, when FolderID is nil, the root container
type DropTarget struct {
	FolderID *string `json:"folder_id"`
}

// RootTarget is the root container
func RootTarget() DropTarget {
	return DropTarget{}
}

// FolderTarget is a folder node
func FolderTarget(id string) DropTarget {
	return DropTarget{FolderID: &id}
}

// IsRoot reports whether the target is the root container
func (t DropTarget) IsRoot() bool {
	return NormalizeParentID(t.FolderID) == nil
}

// DropIntent is the action a drop resolves to
type DropIntent interface {
	intent()
}

// MoveConversationIntent moves a conversation into FolderID (nil = root)
type MoveConversationIntent struct {
	ConversationID string
	FolderID       *string
}

// ReparentFolderIntent moves a folder under ParentID (nil = root)
type ReparentFolderIntent struct {
	FolderID string
	ParentID *string
}

// NoopIntent is a drop that changes nothing (already in place)
type NoopIntent struct {
	Reason string
}

func (MoveConversationIntent) intent() {}
func (ReparentFolderIntent) intent()   {}
func (NoopIntent) intent()             {}
