package sidebar

import (
	"context"
	"time"

	clone "github.com/huandu/go-clone"

	"convtree/internal/domain/models"
)

// Mutations follow stage → persist → commit: the live store only sees a
// change after the storage collaborator accepted it.

func stageConversation(c *models.Conversation) *models.Conversation {
	return clone.Clone(c).(*models.Conversation)
}

func stageFolder(f *models.Folder) *models.Folder {
	return clone.Clone(f).(*models.Folder)
}

func cloneConversations(convs []*models.Conversation) []*models.Conversation {
	out := make([]*models.Conversation, len(convs))
	for i, c := range convs {
		out[i] = stageConversation(c)
	}
	return out
}

// Clock returns the current time; tests replace it
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// withTimeout bounds a storage call when a timeout is configured
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
