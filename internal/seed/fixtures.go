package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"convtree/internal/domain/services"
)

// Fixtures is a YAML description of a sidebar: nested folders with their
// conversations, plus unfiled conversations at the top level.
type Fixtures struct {
	Folders       []FolderFixture       `yaml:"folders"`
	Conversations []ConversationFixture `yaml:"conversations"`
}

// FolderFixture is one folder and everything inside it
type FolderFixture struct {
	Name          string                `yaml:"name"`
	Folders       []FolderFixture       `yaml:"folders"`
	Conversations []ConversationFixture `yaml:"conversations"`
}

// ConversationFixture is one conversation
type ConversationFixture struct {
	Title    string           `yaml:"title"`
	Starred  bool             `yaml:"starred"`
	Tags     []string         `yaml:"tags"`
	Messages []MessageFixture `yaml:"messages"`
}

// MessageFixture is one message
type MessageFixture struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// Validate checks the fixture tree before anything is written
func (f Fixtures) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Folders),
		validation.Field(&f.Conversations),
	)
}

// Validate implements validation.Validatable
func (f FolderFixture) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required),
		validation.Field(&f.Folders),
		validation.Field(&f.Conversations),
	)
}

// Validate implements validation.Validatable
func (c ConversationFixture) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Messages),
	)
}

// Validate implements validation.Validatable
func (m MessageFixture) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Role, validation.Required, validation.In("user", "assistant", "system")),
		validation.Field(&m.Content, validation.Required),
	)
}

// LoadFile reads fixtures from a YAML file
func LoadFile(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates fixtures. Unknown keys are rejected.
func Parse(data []byte) (*Fixtures, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	return &fx, nil
}

// Stats counts what Apply created
type Stats struct {
	Folders       int
	Conversations int
	Messages      int
}

// Seeder writes fixtures through the dispatcher, so seeded data goes
// through the same validation and persistence path as user actions
type Seeder struct {
	dispatcher services.SidebarService
	logger     *slog.Logger
}

// NewSeeder creates a seeder over d
func NewSeeder(d services.SidebarService, logger *slog.Logger) *Seeder {
	return &Seeder{dispatcher: d, logger: logger}
}

// Apply creates every folder, conversation and message in fx. It stops at
// the first failure; what was created before stays.
func (s *Seeder) Apply(ctx context.Context, fx *Fixtures) (Stats, error) {
	var stats Stats
	for _, f := range fx.Folders {
		if err := s.folder(ctx, f, nil, &stats); err != nil {
			return stats, err
		}
	}
	for _, c := range fx.Conversations {
		if err := s.conversation(ctx, c, nil, &stats); err != nil {
			return stats, err
		}
	}

	s.logger.Info("fixtures applied",
		"folders", stats.Folders,
		"conversations", stats.Conversations,
		"messages", stats.Messages,
	)
	return stats, nil
}

func (s *Seeder) folder(ctx context.Context, f FolderFixture, parentID *string, stats *Stats) error {
	folder, err := s.dispatcher.CreateFolder(ctx, f.Name, parentID)
	if err != nil {
		return fmt.Errorf("folder %q: %w", f.Name, err)
	}
	stats.Folders++

	for _, c := range f.Conversations {
		if err := s.conversation(ctx, c, &folder.ID, stats); err != nil {
			return err
		}
	}
	for _, child := range f.Folders {
		if err := s.folder(ctx, child, &folder.ID, stats); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) conversation(ctx context.Context, c ConversationFixture, folderID *string, stats *Stats) error {
	conv, err := s.dispatcher.CreateConversation(ctx, c.Title, folderID)
	if err != nil {
		return fmt.Errorf("conversation %q: %w", c.Title, err)
	}
	stats.Conversations++

	if len(c.Tags) > 0 {
		if _, err := s.dispatcher.UpdateTags(ctx, conv.ID, c.Tags); err != nil {
			return fmt.Errorf("tag conversation %q: %w", c.Title, err)
		}
	}
	if c.Starred {
		if _, err := s.dispatcher.ToggleStar(ctx, conv.ID); err != nil {
			return fmt.Errorf("star conversation %q: %w", c.Title, err)
		}
	}
	for _, m := range c.Messages {
		if _, err := s.dispatcher.AddMessage(ctx, conv.ID, services.MessageInput{Role: m.Role, Content: m.Content}); err != nil {
			return fmt.Errorf("message in %q: %w", c.Title, err)
		}
		stats.Messages++
	}
	return nil
}
