package sidebar

import (
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"convtree/internal/config"
	"convtree/internal/domain"
	"convtree/internal/domain/models"
)

// ExtractTags returns every distinct tag in use, sorted
func ExtractTags(convs []*models.Conversation) []string {
	seen := make(map[string]struct{})
	for _, c := range convs {
		if c == nil {
			continue
		}
		for _, t := range c.Tags {
			seen[t] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// TagCount is a tag and how many conversations carry it
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagCounts returns usage counts per tag, most used first then alphabetical
func TagCounts(convs []*models.Conversation) []TagCount {
	counts := make(map[string]int)
	for _, c := range convs {
		if c == nil {
			continue
		}
		// A tag listed twice on one conversation counts once
		seen := make(map[string]struct{}, len(c.Tags))
		for _, t := range c.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			counts[t]++
		}
	}

	out := make([]TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TagCount{Tag: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// TagIndex tracks the single selected tag. Selecting an unknown tag is allowed
// and simply matches nothing.
type TagIndex struct {
	selected *string
}

// Selected returns the selected tag, or nil
func (t *TagIndex) Selected() *string {
	if t.selected == nil {
		return nil
	}
	v := *t.selected
	return &v
}

// Select sets (or, with nil, clears) the selected tag
func (t *TagIndex) Select(tag *string) {
	if tag == nil {
		t.selected = nil
		return
	}
	v := *tag
	t.selected = &v
}

// NormalizeTags trims, drops empties and collapses duplicates, keeping first occurrence order
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// validateTags checks an already-normalized tag list
func validateTags(tags []string) error {
	err := validation.Validate(tags,
		validation.Length(0, config.MaxTagsPerConversation),
		validation.Each(validation.Length(1, config.MaxTagLength)),
	)
	if err != nil {
		return domain.NewValidation("invalid tags", err)
	}
	return nil
}
