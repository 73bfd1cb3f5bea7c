package models

import "time"

// Action names exposed on rendered nodes. Renderers bind them to user gestures.
type Action string

const (
	ActionSelect          Action = "select"
	ActionRename          Action = "rename"
	ActionDelete          Action = "delete"
	ActionToggleStar      Action = "toggle-star"
	ActionMoveToFolder    Action = "move-to-folder"
	ActionUpdateTags      Action = "update-tags"
	ActionToggleExpand    Action = "toggle-expand"
	ActionCreateSubfolder Action = "create-subfolder"
)

// ConversationActions is the fixed action set of a conversation node
var ConversationActions = []Action{
	ActionSelect,
	ActionRename,
	ActionDelete,
	ActionToggleStar,
	ActionMoveToFolder,
	ActionUpdateTags,
}

// FolderActions is the fixed action set of a folder node
var FolderActions = []Action{
	ActionToggleExpand,
	ActionRename,
	ActionDelete,
	ActionCreateSubfolder,
}

// VisibleTree describes what the sidebar shows for the current state
type VisibleTree struct {
	Folders              []*FolderNode      `json:"folders"`
	Conversations        []ConversationNode `json:"conversations"` // unfiled, at root
	Tags                 []string           `json:"tags"`
	SelectedTag          *string            `json:"selected_tag"`
	SelectedID           *string            `json:"selected_id"`
	View                 ViewState          `json:"view"`
	TotalConversations   int                `json:"total_conversations"`
	VisibleConversations int                `json:"visible_conversations"`
}

// FolderNode is a rendered folder with nested children.
// Children are only populated when the folder is expanded.
type FolderNode struct {
	ID            string             `json:"id"`
	Label         string             `json:"label"`
	ParentID      *string            `json:"parent_id"`
	Path          string             `json:"path"`
	Depth         int                `json:"depth"`
	Expanded      bool               `json:"expanded"`
	MatchCount    int                `json:"match_count"`
	Folders       []*FolderNode      `json:"folders"`
	Conversations []ConversationNode `json:"conversations"`
	Actions       []Action           `json:"actions"`
}

// ConversationNode is a rendered conversation row
type ConversationNode struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	FolderID     *string   `json:"folder_id"`
	Tags         []string  `json:"tags"`
	Selected     bool      `json:"selected"`
	Starred      bool      `json:"starred"`
	MessageCount int       `json:"message_count"`
	ModifiedAt   time.Time `json:"modified_at"`
	Actions      []Action  `json:"actions"`
}

// Walk visits every folder node depth-first, parents before children
func (t *VisibleTree) Walk(fn func(node *FolderNode)) {
	var walk func(nodes []*FolderNode)
	walk = func(nodes []*FolderNode) {
		for _, n := range nodes {
			fn(n)
			walk(n.Folders)
		}
	}
	walk(t.Folders)
}

// FindFolder returns the rendered folder node with id, or nil
func (t *VisibleTree) FindFolder(id string) *FolderNode {
	var found *FolderNode
	t.Walk(func(n *FolderNode) {
		if found == nil && n.ID == id {
			found = n
		}
	})
	return found
}
