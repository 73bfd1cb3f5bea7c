package sidebar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"convtree/internal/domain"
	"convtree/internal/domain/services"
	"convtree/internal/events"
)

// BusNotifier logs notices and publishes them on the notice topic
type BusNotifier struct {
	events services.EventPublisher
	logger *slog.Logger
}

// NewBusNotifier creates a notifier. A nil publisher only logs.
func NewBusNotifier(publisher services.EventPublisher, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{events: publisher, logger: logger}
}

// Notify implements services.Notifier
func (n *BusNotifier) Notify(ctx context.Context, notice services.Notice) {
	level := slog.LevelInfo
	switch notice.Level {
	case services.NoticeWarning:
		level = slog.LevelWarn
	case services.NoticeError:
		level = slog.LevelError
	}

	attrs := []any{"action", notice.Action}
	if notice.Err != nil {
		attrs = append(attrs, "error", notice.Err)
	}
	n.logger.Log(ctx, level, notice.Message, attrs...)

	if n.events != nil {
		n.events.Publish(events.TopicNotice, notice)
	}
}

// noticeLevel grades an action failure: bad input is a warning, anything else an error
func noticeLevel(err error) services.NoticeLevel {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrStructural):
		return services.NoticeWarning
	default:
		return services.NoticeError
	}
}

// ActionObserver records the outcome of each dispatched action
type ActionObserver interface {
	ObserveAction(action, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAction(string, string, time.Duration) {}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

type confirmerKey struct{}

// ContextWithConfirmer overrides the dispatcher's Confirmer for calls made with ctx
func ContextWithConfirmer(ctx context.Context, c services.Confirmer) context.Context {
	return context.WithValue(ctx, confirmerKey{}, c)
}

func confirmerFromContext(ctx context.Context) services.Confirmer {
	c, _ := ctx.Value(confirmerKey{}).(services.Confirmer)
	return c
}
