package events

// Topics published by the sidebar
const (
	TopicConversationsChanged = "conversations-changed"
	TopicFoldersChanged       = "folders-changed"
	TopicTreeInvalidated      = "tree-invalidated"
	TopicConversationSelected = "conversation-selected"
	TopicNotice               = "notice"
)

// Change describes a committed mutation
type Change struct {
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
}

// Selection is published when the selected conversation changes.
// ConversationID is empty when the selection was cleared.
type Selection struct {
	ConversationID string `json:"conversation_id"`
}
