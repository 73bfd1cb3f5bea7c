package models

import (
	"fmt"
	"strings"
)

// FilterCategory narrows the visible conversation set
type FilterCategory string

const (
	FilterAll      FilterCategory = "all"
	FilterStarred  FilterCategory = "starred"
	FilterUntagged FilterCategory = "untagged"
	FilterUnfiled  FilterCategory = "unfiled"
)

// ParseFilterCategory validates a filter category; empty means all
func ParseFilterCategory(s string) (FilterCategory, error) {
	switch FilterCategory(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterStarred:
		return FilterStarred, nil
	case FilterUntagged:
		return FilterUntagged, nil
	case FilterUnfiled:
		return FilterUnfiled, nil
	}
	return "", fmt.Errorf("unknown filter category %q", s)
}

// SortKey selects the ordering of visible conversations
type SortKey string

const (
	SortModifiedDesc SortKey = "modified-desc"
	SortModifiedAsc  SortKey = "modified-asc"
	SortCreatedDesc  SortKey = "created-desc"
	SortCreatedAsc   SortKey = "created-asc"
	SortTitleAsc     SortKey = "title-asc"
	SortTitleDesc    SortKey = "title-desc"
)

// ParseSortKey validates a sort key; empty means most recently modified first
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortModifiedDesc:
		return SortModifiedDesc, nil
	case SortModifiedAsc:
		return SortModifiedAsc, nil
	case SortCreatedDesc:
		return SortCreatedDesc, nil
	case SortCreatedAsc:
		return SortCreatedAsc, nil
	case SortTitleAsc:
		return SortTitleAsc, nil
	case SortTitleDesc:
		return SortTitleDesc, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// ViewState is the session-scoped filter/sort selection. It is never written
// to the conversation storage.
type ViewState struct {
	Query       string         `json:"query"`
	SelectedTag *string        `json:"selected_tag"`
	Category    FilterCategory `json:"filter"`
	Sort        SortKey        `json:"sort"`
}

// DefaultViewState shows everything, most recently modified first
func DefaultViewState() ViewState {
	return ViewState{
		Category: FilterAll,
		Sort:     SortModifiedDesc,
	}
}

// IsFiltering reports whether any predicate narrows the conversation set
func (v ViewState) IsFiltering() bool {
	if strings.TrimSpace(v.Query) != "" || v.SelectedTag != nil {
		return true
	}
	return v.Category != "" && v.Category != FilterAll
}

// ViewPatch is a partial update of the view state.
// TagSet distinguishes "clear the tag" (TagSet with nil Tag) from "leave it".
type ViewPatch struct {
	Query    *string
	TagSet   bool
	Tag      *string
	Category *FilterCategory
	Sort     *SortKey
}

// Apply returns v with the patch applied
func (p ViewPatch) Apply(v ViewState) ViewState {
	if p.Query != nil {
		v.Query = *p.Query
	}
	if p.TagSet {
		if p.Tag == nil || *p.Tag == "" {
			v.SelectedTag = nil
		} else {
			tag := *p.Tag
			v.SelectedTag = &tag
		}
	}
	if p.Category != nil {
		v.Category = *p.Category
	}
	if p.Sort != nil {
		v.Sort = *p.Sort
	}
	return v
}

// SessionSnapshot is the restorable part of a sidebar session
type SessionSnapshot struct {
	View            ViewState `json:"view"`
	ExpandedFolders []string  `json:"expanded_folders"`
	SelectedID      *string   `json:"selected_id,omitempty"`
}
