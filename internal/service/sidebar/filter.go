package sidebar

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"convtree/internal/domain/models"
)

// Engine filters and sorts conversations for display.
// It is stateless apart from the collation language used for titles.
type Engine struct {
	lang language.Tag
}

// NewEngine creates an engine that orders titles by the rules of lang
func NewEngine(lang language.Tag) *Engine {
	return &Engine{lang: lang}
}

// NewEngineForLocale parses a BCP 47 tag, falling back to English
func NewEngineForLocale(locale string) *Engine {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return NewEngine(tag)
}

var defaultEngine = NewEngine(language.English)

// FilterAndSort applies search, tag and category filters (in that order) and
// sorts the survivors by view.Sort. The input slice and its elements are not modified.
func FilterAndSort(convs []*models.Conversation, view models.ViewState) []*models.Conversation {
	return defaultEngine.FilterAndSort(convs, view)
}

// FilterAndSort is the engine's version of the package-level FilterAndSort
func (e *Engine) FilterAndSort(convs []*models.Conversation, view models.ViewState) []*models.Conversation {
	out := make([]*models.Conversation, 0, len(convs))
	for _, c := range convs {
		if c != nil && Matches(c, view) {
			out = append(out, c)
		}
	}
	e.sort(out, view.Sort)
	return out
}

// Matches reports whether a conversation passes every active filter
func Matches(c *models.Conversation, view models.ViewState) bool {
	return matchesSearch(c, view.Query) &&
		matchesTag(c, view.SelectedTag) &&
		matchesCategory(c, view.Category)
}

// matchesSearch: case-insensitive substring over title, tags and message contents
func matchesSearch(c *models.Conversation, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Title), q) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	for i := range c.Messages {
		if strings.Contains(strings.ToLower(c.Messages[i].Content), q) {
			return true
		}
	}
	return false
}

func matchesTag(c *models.Conversation, tag *string) bool {
	if tag == nil {
		return true
	}
	return c.HasTag(*tag)
}

func matchesCategory(c *models.Conversation, category models.FilterCategory) bool {
	switch category {
	case models.FilterStarred:
		return c.IsStarred
	case models.FilterUntagged:
		return len(c.Tags) == 0
	case models.FilterUnfiled:
		return c.IsUnfiled()
	default:
		return true
	}
}

// sort orders convs in place; ties keep their input order
func (e *Engine) sort(convs []*models.Conversation, key models.SortKey) {
	var less func(a, b *models.Conversation) bool

	switch key {
	case models.SortModifiedAsc:
		less = func(a, b *models.Conversation) bool { return a.ModifiedAt.Before(b.ModifiedAt) }
	case models.SortCreatedDesc:
		less = func(a, b *models.Conversation) bool { return b.CreatedAt.Before(a.CreatedAt) }
	case models.SortCreatedAsc:
		less = func(a, b *models.Conversation) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case models.SortTitleAsc, models.SortTitleDesc:
		// Collators keep internal buffers, so each sort gets its own
		col := collate.New(e.lang, collate.IgnoreCase)
		if key == models.SortTitleAsc {
			less = func(a, b *models.Conversation) bool { return col.CompareString(a.Title, b.Title) < 0 }
		} else {
			less = func(a, b *models.Conversation) bool { return col.CompareString(b.Title, a.Title) < 0 }
		}
	default:
		less = func(a, b *models.Conversation) bool { return b.ModifiedAt.Before(a.ModifiedAt) }
	}

	sort.SliceStable(convs, func(i, j int) bool { return less(convs[i], convs[j]) })
}
