package models

import "testing"

func TestViewPatchApply(t *testing.T) {
	starred := FilterStarred
	titleAsc := SortTitleAsc
	base := DefaultViewState()
	base.Query = "go"
	base.SelectedTag = StringPtr("work")

	tests := []struct {
		name  string
		patch ViewPatch
		check func(t *testing.T, got ViewState)
	}{
		{
			name:  "empty patch leaves state alone",
			patch: ViewPatch{},
			check: func(t *testing.T, got ViewState) {
				if got.Query != "go" || got.SelectedTag == nil || *got.SelectedTag != "work" {
					t.Errorf("state changed: %+v", got)
				}
			},
		},
		{
			name:  "tag untouched without TagSet",
			patch: ViewPatch{Tag: StringPtr("home")},
			check: func(t *testing.T, got ViewState) {
				if *got.SelectedTag != "work" {
					t.Errorf("SelectedTag = %q, want work", *got.SelectedTag)
				}
			},
		},
		{
			name:  "TagSet with nil clears",
			patch: ViewPatch{TagSet: true},
			check: func(t *testing.T, got ViewState) {
				if got.SelectedTag != nil {
					t.Errorf("SelectedTag = %q, want nil", *got.SelectedTag)
				}
			},
		},
		{
			name:  "TagSet with empty clears",
			patch: ViewPatch{TagSet: true, Tag: StringPtr("")},
			check: func(t *testing.T, got ViewState) {
				if got.SelectedTag != nil {
					t.Errorf("SelectedTag = %q, want nil", *got.SelectedTag)
				}
			},
		},
		{
			name:  "every field",
			patch: ViewPatch{Query: StringPtr(""), TagSet: true, Tag: StringPtr("home"), Category: &starred, Sort: &titleAsc},
			check: func(t *testing.T, got ViewState) {
				if got.Query != "" || *got.SelectedTag != "home" || got.Category != FilterStarred || got.Sort != SortTitleAsc {
					t.Errorf("state = %+v", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.patch.Apply(base))
		})
	}

	if base.Query != "go" || *base.SelectedTag != "work" || base.Category != FilterAll {
		t.Errorf("Apply mutated its input: %+v", base)
	}
}

func TestViewPatchApplyCopiesTag(t *testing.T) {
	tag := "work"
	got := ViewPatch{TagSet: true, Tag: &tag}.Apply(DefaultViewState())
	tag = "changed"
	if *got.SelectedTag != "work" {
		t.Errorf("SelectedTag aliases the patch: %q", *got.SelectedTag)
	}
}

func TestViewStateIsFiltering(t *testing.T) {
	tests := []struct {
		name string
		view ViewState
		want bool
	}{
		{"default", DefaultViewState(), false},
		{"blank query", ViewState{Query: "   ", Category: FilterAll}, false},
		{"query", ViewState{Query: "go"}, true},
		{"tag", ViewState{SelectedTag: StringPtr("work")}, true},
		{"category", ViewState{Category: FilterUnfiled}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.view.IsFiltering(); got != tt.want {
				t.Errorf("IsFiltering() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseViewEnums(t *testing.T) {
	if got, err := ParseFilterCategory(""); err != nil || got != FilterAll {
		t.Errorf("ParseFilterCategory(\"\") = %q, %v", got, err)
	}
	if got, err := ParseFilterCategory(" Starred "); err != nil || got != FilterStarred {
		t.Errorf("ParseFilterCategory(Starred) = %q, %v", got, err)
	}
	if _, err := ParseFilterCategory("archived"); err == nil {
		t.Error("expected error for unknown category")
	}
	if got, err := ParseSortKey(""); err != nil || got != SortModifiedDesc {
		t.Errorf("ParseSortKey(\"\") = %q, %v", got, err)
	}
	if got, err := ParseSortKey("TITLE-DESC"); err != nil || got != SortTitleDesc {
		t.Errorf("ParseSortKey(TITLE-DESC) = %q, %v", got, err)
	}
	if _, err := ParseSortKey("size"); err == nil {
		t.Error("expected error for unknown sort key")
	}
}
