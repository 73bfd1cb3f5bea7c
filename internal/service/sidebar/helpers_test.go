package sidebar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"convtree/internal/domain/models"
	"convtree/internal/domain/repositories"
	"convtree/internal/domain/services"
	"convtree/internal/repository/memory"
)

var errStorageDown = errors.New("storage down")

// fakeStorage wraps the in-memory storage, records every call and fails the
// methods named in fail
type fakeStorage struct {
	repositories.Storage

	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{Storage: memory.NewStorage(), fail: make(map[string]error)}
}

func (f *fakeStorage) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	return f.fail[method]
}

func (f *fakeStorage) failOn(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = errStorageDown
}

func (f *fakeStorage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStorage) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeStorage) GetConversations(ctx context.Context) ([]*models.Conversation, error) {
	if err := f.record("GetConversations"); err != nil {
		return nil, err
	}
	return f.Storage.GetConversations(ctx)
}

func (f *fakeStorage) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	if err := f.record("CreateConversation"); err != nil {
		return nil, err
	}
	return f.Storage.CreateConversation(ctx, title)
}

func (f *fakeStorage) DeleteConversation(ctx context.Context, id string) error {
	if err := f.record("DeleteConversation"); err != nil {
		return err
	}
	return f.Storage.DeleteConversation(ctx, id)
}

func (f *fakeStorage) AddMessage(ctx context.Context, id string, msg models.Message) error {
	if err := f.record("AddMessage"); err != nil {
		return err
	}
	return f.Storage.AddMessage(ctx, id, msg)
}

func (f *fakeStorage) RenameConversation(ctx context.Context, id, title string, modifiedAt time.Time) error {
	if err := f.record("RenameConversation"); err != nil {
		return err
	}
	return f.Storage.RenameConversation(ctx, id, title, modifiedAt)
}

func (f *fakeStorage) ToggleConversationStar(ctx context.Context, id string) (bool, error) {
	if err := f.record("ToggleConversationStar"); err != nil {
		return false, err
	}
	return f.Storage.ToggleConversationStar(ctx, id)
}

func (f *fakeStorage) UpdateConversationTags(ctx context.Context, id string, tags []string, modifiedAt time.Time) error {
	if err := f.record("UpdateConversationTags"); err != nil {
		return err
	}
	return f.Storage.UpdateConversationTags(ctx, id, tags, modifiedAt)
}

func (f *fakeStorage) GetFolders(ctx context.Context) ([]*models.Folder, error) {
	if err := f.record("GetFolders"); err != nil {
		return nil, err
	}
	return f.Storage.GetFolders(ctx)
}

func (f *fakeStorage) CreateFolder(ctx context.Context, params models.CreateFolderParams) (*models.Folder, error) {
	if err := f.record("CreateFolder"); err != nil {
		return nil, err
	}
	return f.Storage.CreateFolder(ctx, params)
}

func (f *fakeStorage) SaveFolder(ctx context.Context, folder *models.Folder) error {
	if err := f.record("SaveFolder"); err != nil {
		return err
	}
	return f.Storage.SaveFolder(ctx, folder)
}

func (f *fakeStorage) DeleteFolder(ctx context.Context, id string) error {
	if err := f.record("DeleteFolder"); err != nil {
		return err
	}
	return f.Storage.DeleteFolder(ctx, id)
}

func (f *fakeStorage) MoveConversationToFolder(ctx context.Context, id string, folderID *string) error {
	if err := f.record("MoveConversationToFolder"); err != nil {
		return err
	}
	return f.Storage.MoveConversationToFolder(ctx, id, folderID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testSidebar is a dispatcher wired over fresh stores and fake storage
type testSidebar struct {
	storage       *fakeStorage
	conversations *ConversationStore
	folders       *FolderStore
	drag          *DragTracker
	dispatcher    *Dispatcher
	notices       *recordingNotifier
	events        *recordingPublisher
}

func newTestSidebar(t *testing.T, opts ...DispatcherOption) *testSidebar {
	t.Helper()
	storage := newFakeStorage()
	logger := testLogger()

	ts := &testSidebar{
		storage:       storage,
		conversations: NewConversationStore(storage, time.Second, logger),
		folders:       NewFolderStore(storage, time.Second, logger),
		drag:          &DragTracker{},
		notices:       &recordingNotifier{},
		events:        &recordingPublisher{},
	}
	opts = append([]DispatcherOption{WithNotifier(ts.notices), WithEvents(ts.events)}, opts...)
	ts.dispatcher = NewDispatcher(ts.conversations, ts.folders, ts.drag, logger, opts...)
	return ts
}

func (ts *testSidebar) mustCreateFolder(t *testing.T, name string, parentID *string) *models.Folder {
	t.Helper()
	f, err := ts.dispatcher.CreateFolder(context.Background(), name, parentID)
	if err != nil {
		t.Fatalf("CreateFolder(%q) failed: %v", name, err)
	}
	return f
}

func (ts *testSidebar) mustCreateConversation(t *testing.T, title string, folderID *string) *models.Conversation {
	t.Helper()
	c, err := ts.dispatcher.CreateConversation(context.Background(), title, folderID)
	if err != nil {
		t.Fatalf("CreateConversation(%q) failed: %v", title, err)
	}
	return c
}

type recordingNotifier struct {
	notices []services.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice services.Notice) {
	n.notices = append(n.notices, notice)
}

type publishedEvent struct {
	topic   string
	payload any
}

type recordingPublisher struct {
	events []publishedEvent
}

func (p *recordingPublisher) Publish(topic string, payload any) {
	p.events = append(p.events, publishedEvent{topic: topic, payload: payload})
}

func (p *recordingPublisher) count(topic string) int {
	n := 0
	for _, e := range p.events {
		if e.topic == topic {
			n++
		}
	}
	return n
}

// conv builds a conversation fixture without going through storage
func conv(id, title string, modified time.Time) *models.Conversation {
	c := models.NewConversation(title, modified)
	c.ID = id
	return c
}

func titles(convs []*models.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
