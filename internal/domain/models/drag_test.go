package models

import "testing"

func TestParseDragPayload(t *testing.T) {
	tests := []struct {
		name     string
		kind, id string
		want     DragPayload
		wantErr  bool
	}{
		{"conversation", "conversation", "c1", ConversationPayload{ID: "c1"}, false},
		{"folder", "folder", "f1", FolderPayload{ID: "f1"}, false},
		{"case and space", "  Folder ", " f1 ", FolderPayload{ID: "f1"}, false},
		{"empty id", "folder", "  ", nil, true},
		{"unknown kind", "message", "m1", nil, true},
		{"empty kind", "", "c1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDragPayload(tt.kind, tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDragPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDragPayload() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDragPayloadWireForm(t *testing.T) {
	p := FolderPayload{ID: "f1"}
	data, err := MarshalDragPayload(p)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"type":"folder","id":"f1"}` {
		t.Errorf("MarshalDragPayload() = %s", got)
	}
	if got := DragKey(ConversationPayload{ID: "c1"}); got != "conversation:c1" {
		t.Errorf("DragKey() = %q", got)
	}
}

func TestDropTargetIsRoot(t *testing.T) {
	tests := []struct {
		name   string
		target DropTarget
		want   bool
	}{
		{"root", RootTarget(), true},
		{"undefined folder", DropTarget{FolderID: StringPtr("undefined")}, true},
		{"folder", FolderTarget("f1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.IsRoot(); got != tt.want {
				t.Errorf("IsRoot() = %v, want %v", got, tt.want)
			}
		})
	}
}
