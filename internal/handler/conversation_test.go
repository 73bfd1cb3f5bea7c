package handler

import (
	"net/http"
	"testing"

	"convtree/internal/domain/models"
)

func TestConversationLifecycle(t *testing.T) {
	h := newTestServer(t)

	var created models.Conversation
	rec := do(t, h, http.MethodPost, "/api/conversations", CreateConversationRequest{Title: "Trip planning"}, &created)
	expectStatus(t, rec, http.StatusCreated)
	if created.ID == "" || created.Title != "Trip planning" {
		t.Fatalf("created = %+v", created)
	}
	path := "/api/conversations/" + created.ID

	var renamed models.Conversation
	rec = do(t, h, http.MethodPatch, path, map[string]any{"title": "Trip to Lisbon"}, &renamed)
	expectStatus(t, rec, http.StatusOK)
	if renamed.Title != "Trip to Lisbon" {
		t.Errorf("Title = %q", renamed.Title)
	}

	var starred models.Conversation
	expectStatus(t, do(t, h, http.MethodPost, path+"/star", nil, &starred), http.StatusOK)
	if !starred.IsStarred {
		t.Error("star toggle did not apply")
	}

	var tagged models.Conversation
	expectStatus(t, do(t, h, http.MethodPut, path+"/tags", UpdateTagsRequest{Tags: []string{" travel ", "travel", "2024"}}, &tagged), http.StatusOK)
	if len(tagged.Tags) != 2 || tagged.Tags[0] != "travel" {
		t.Errorf("Tags = %v, want normalized", tagged.Tags)
	}

	var msg models.Message
	rec = do(t, h, http.MethodPost, path+"/messages", map[string]any{"role": "user", "content": "Flights?"}, &msg)
	expectStatus(t, rec, http.StatusCreated)
	if msg.ID == "" || msg.Role != models.RoleUser {
		t.Errorf("message = %+v", msg)
	}

	var got models.Conversation
	expectStatus(t, do(t, h, http.MethodGet, path, nil, &got), http.StatusOK)
	if len(got.Messages) != 1 || got.Messages[0].Content != "Flights?" {
		t.Errorf("messages = %+v", got.Messages)
	}

	var list []models.ConversationSummary
	expectStatus(t, do(t, h, http.MethodGet, "/api/conversations", nil, &list), http.StatusOK)
	if len(list) != 1 || list[0].MessageCount != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestUpdateConversationMovesBetweenFolders(t *testing.T) {
	h := newTestServer(t)

	var folder models.Folder
	expectStatus(t, do(t, h, http.MethodPost, "/api/folders", CreateFolderRequest{Name: "Work"}, &folder), http.StatusCreated)
	var conv models.Conversation
	do(t, h, http.MethodPost, "/api/conversations", CreateConversationRequest{Title: "Notes"}, &conv)
	path := "/api/conversations/" + conv.ID

	var moved models.Conversation
	expectStatus(t, do(t, h, http.MethodPatch, path, map[string]any{"folder_id": folder.ID}, &moved), http.StatusOK)
	if moved.FolderID == nil || *moved.FolderID != folder.ID {
		t.Errorf("FolderID = %v, want %s", moved.FolderID, folder.ID)
	}

	var unfiled models.Conversation
	expectStatus(t, do(t, h, http.MethodPatch, path, map[string]any{"folder_id": nil}, &unfiled), http.StatusOK)
	if unfiled.FolderID != nil {
		t.Errorf("FolderID = %v, want root", *unfiled.FolderID)
	}

	// A missing folder is a validation failure and nothing moves
	rec := do(t, h, http.MethodPatch, path, map[string]any{"folder_id": "missing"}, nil)
	expectStatus(t, rec, http.StatusBadRequest)

	var same models.Conversation
	expectStatus(t, do(t, h, http.MethodPatch, path, map[string]any{}, &same), http.StatusOK)
	if same.FolderID != nil {
		t.Error("rejected move changed the folder")
	}

	expectStatus(t, do(t, h, http.MethodPatch, "/api/conversations/nope", map[string]any{}, nil), http.StatusNotFound)
}

func TestDeleteConversationRequiresConfirmation(t *testing.T) {
	h := newTestServer(t)

	var conv models.Conversation
	do(t, h, http.MethodPost, "/api/conversations", CreateConversationRequest{Title: "Old"}, &conv)
	path := "/api/conversations/" + conv.ID

	var problem map[string]any
	rec := do(t, h, http.MethodDelete, path, nil, &problem)
	expectStatus(t, rec, http.StatusPreconditionRequired)
	confirmation, ok := problem["confirmation"].(map[string]any)
	if !ok || confirmation["resource_id"] != conv.ID {
		t.Errorf("problem = %v, want the confirmation prompt", problem)
	}
	expectStatus(t, do(t, h, http.MethodGet, path, nil, nil), http.StatusOK)

	expectStatus(t, do(t, h, http.MethodDelete, path+"?confirm=true", nil, nil), http.StatusNoContent)
	expectStatus(t, do(t, h, http.MethodGet, path, nil, nil), http.StatusNotFound)
	expectStatus(t, do(t, h, http.MethodDelete, path+"?confirm=true", nil, nil), http.StatusNotFound)
}

func TestConversationValidation(t *testing.T) {
	h := newTestServer(t)

	var conv models.Conversation
	do(t, h, http.MethodPost, "/api/conversations", CreateConversationRequest{}, &conv)
	if conv.Title != "New conversation" {
		t.Errorf("default title = %q", conv.Title)
	}
	path := "/api/conversations/" + conv.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"empty title", http.MethodPatch, path, map[string]any{"title": "  "}, http.StatusBadRequest},
		{"bad role", http.MethodPost, path + "/messages", map[string]any{"role": "robot", "content": "x"}, http.StatusBadRequest},
		{"unknown conversation", http.MethodPost, "/api/conversations/nope/star", nil, http.StatusNotFound},
		{"select unknown", http.MethodPost, "/api/conversations/nope/select", nil, http.StatusNotFound},
		{"create in missing folder", http.MethodPost, "/api/conversations", map[string]any{"folder_id": "missing"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, do(t, h, tt.method, tt.path, tt.body, nil), tt.want)
		})
	}
}
