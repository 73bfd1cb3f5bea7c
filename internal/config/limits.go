package config

const (
	// MaxConversationTitleLength is the maximum length for conversation titles.
	// Limited to 255 to fit in VARCHAR(255) columns.
	MaxConversationTitleLength = 255

	// MaxFolderNameLength is the maximum length for folder names.
	// Same as conversation titles for consistency.
	MaxFolderNameLength = 255

	// MaxTagLength is the maximum length of a single tag
	MaxTagLength = 64

	// MaxTagsPerConversation bounds the tag list of one conversation
	MaxTagsPerConversation = 32

	// MaxMessageContentLength is the maximum size of one message body (1 MiB)
	MaxMessageContentLength = 1 << 20

	// MaxSearchQueryLength bounds the sidebar search box
	MaxSearchQueryLength = 256

	// DefaultConversationTitle is used when a conversation is created without a title
	DefaultConversationTitle = "New conversation"
)
