package sidebar

import (
	"fmt"
	"strings"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
)

// EmptyFolderPolicy decides whether folders without matching conversations are rendered
type EmptyFolderPolicy string

const (
	ShowEmptyFolders       EmptyFolderPolicy = "show"
	HideEmptyWhenFiltering EmptyFolderPolicy = "hide-when-filtering"
	HideEmptyFolders       EmptyFolderPolicy = "hide"
)

// ParseEmptyFolderPolicy validates a policy name; empty means hide-when-filtering
func ParseEmptyFolderPolicy(s string) (EmptyFolderPolicy, error) {
	switch EmptyFolderPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", HideEmptyWhenFiltering:
		return HideEmptyWhenFiltering, nil
	case ShowEmptyFolders:
		return ShowEmptyFolders, nil
	case HideEmptyFolders:
		return HideEmptyFolders, nil
	}
	return "", fmt.Errorf("unknown empty folder policy %q", s)
}

// FolderSource is the read side of the folder store used for rendering
type FolderSource interface {
	Folders() []*models.Folder
	IsFolderExpanded(id string) bool
}

// RenderInput is everything a render reads. Nothing in it is modified.
type RenderInput struct {
	Folders       FolderSource
	Conversations []*models.Conversation
	View          models.ViewState
	SelectedID    *string

	// ExpandAll renders every folder as expanded regardless of the expansion set
	ExpandAll bool
}

// TreeRenderer turns store state into a VisibleTree
type TreeRenderer struct {
	engine *Engine
	policy EmptyFolderPolicy
}

// NewTreeRenderer creates a renderer. A nil engine uses English title collation.
func NewTreeRenderer(engine *Engine, policy EmptyFolderPolicy) *TreeRenderer {
	if engine == nil {
		engine = defaultEngine
	}
	if policy == "" {
		policy = HideEmptyWhenFiltering
	}
	return &TreeRenderer{engine: engine, policy: policy}
}

// Policy returns the renderer's empty folder policy
func (r *TreeRenderer) Policy() EmptyFolderPolicy {
	return r.policy
}

// WithPolicy returns a renderer sharing the engine with a different policy
func (r *TreeRenderer) WithPolicy(policy EmptyFolderPolicy) *TreeRenderer {
	return NewTreeRenderer(r.engine, policy)
}

// renderPass holds the indexes built for one Render call
type renderPass struct {
	in        RenderInput
	filtering bool
	byID      map[string]*models.Folder
	children  map[string][]*models.Folder
	matches   map[string][]*models.Conversation
	counts    map[string]int
	visited   map[string]struct{}
}

// Render describes the visible sidebar. Folders are listed first (roots and
// orphans in load order), then unfiled conversations. A parent cycle is a
// StructuralError and nothing is rendered.
func (r *TreeRenderer) Render(in RenderInput) (*models.VisibleTree, error) {
	var folders []*models.Folder
	if in.Folders != nil {
		folders = in.Folders.Folders()
	}
	if err := validateForest(folders); err != nil {
		return nil, err
	}

	matching := r.engine.FilterAndSort(in.Conversations, in.View)

	p := &renderPass{
		in:        in,
		filtering: in.View.IsFiltering(),
		byID:      make(map[string]*models.Folder, len(folders)),
		children:  make(map[string][]*models.Folder),
		matches:   make(map[string][]*models.Conversation),
		counts:    make(map[string]int, len(folders)),
		visited:   make(map[string]struct{}, len(folders)),
	}

	// Pass 1: index folders
	for _, f := range folders {
		p.byID[f.ID] = f
	}

	// Pass 2: link children; a folder whose parent is unknown is an orphan and sits at root
	var roots []*models.Folder
	for _, f := range folders {
		parentID := models.NormalizeParentID(f.ParentID)
		if parentID == nil || p.byID[*parentID] == nil {
			roots = append(roots, f)
			continue
		}
		p.children[*parentID] = append(p.children[*parentID], f)
	}

	// Pass 3: bucket matching conversations, keeping the sorted order
	var unfiled []*models.Conversation
	for _, c := range matching {
		folderID := models.NormalizeParentID(c.FolderID)
		if folderID == nil || p.byID[*folderID] == nil {
			unfiled = append(unfiled, c)
			continue
		}
		p.matches[*folderID] = append(p.matches[*folderID], c)
	}

	tree := &models.VisibleTree{
		Folders:              []*models.FolderNode{},
		Conversations:        make([]models.ConversationNode, 0, len(unfiled)),
		Tags:                 ExtractTags(in.Conversations),
		SelectedTag:          in.View.SelectedTag,
		SelectedID:           in.SelectedID,
		View:                 in.View,
		TotalConversations:   len(in.Conversations),
		VisibleConversations: len(matching),
	}

	for _, root := range roots {
		if _, err := p.count(root.ID, map[string]struct{}{}); err != nil {
			return nil, err
		}
	}

	for _, root := range roots {
		node, err := r.renderFolder(p, root, "", 0)
		if err != nil {
			return nil, err
		}
		if node != nil {
			tree.Folders = append(tree.Folders, node)
		}
	}

	for _, c := range unfiled {
		tree.Conversations = append(tree.Conversations, conversationNode(c, in.SelectedID))
	}

	return tree, nil
}

// count returns the matching conversations in the subtree of id
func (p *renderPass) count(id string, path map[string]struct{}) (int, error) {
	if n, ok := p.counts[id]; ok {
		return n, nil
	}
	if _, loop := path[id]; loop {
		return 0, &domain.StructuralError{FolderID: id, Message: "folder is its own ancestor"}
	}
	path[id] = struct{}{}
	defer delete(path, id)

	n := len(p.matches[id])
	for _, child := range p.children[id] {
		c, err := p.count(child.ID, path)
		if err != nil {
			return 0, err
		}
		n += c
	}
	p.counts[id] = n
	return n, nil
}

func (r *TreeRenderer) visible(p *renderPass, f *models.Folder) bool {
	if p.counts[f.ID] > 0 {
		return true
	}
	switch r.policy {
	case ShowEmptyFolders:
		return true
	case HideEmptyFolders:
		return len(p.children[f.ID]) > 0
	default:
		return !p.filtering
	}
}

func (r *TreeRenderer) renderFolder(p *renderPass, f *models.Folder, parentPath string, depth int) (*models.FolderNode, error) {
	if _, seen := p.visited[f.ID]; seen {
		return nil, &domain.StructuralError{FolderID: f.ID, Message: "folder reached twice while rendering"}
	}
	p.visited[f.ID] = struct{}{}

	if !r.visible(p, f) {
		return nil, nil
	}

	path := f.Name
	if parentPath != "" {
		path = parentPath + "/" + f.Name
	}

	expanded := p.in.ExpandAll || (p.in.Folders != nil && p.in.Folders.IsFolderExpanded(f.ID))
	node := &models.FolderNode{
		ID:            f.ID,
		Label:         f.Name,
		ParentID:      models.NormalizeParentID(f.ParentID),
		Path:          path,
		Depth:         depth,
		Expanded:      expanded,
		MatchCount:    p.counts[f.ID],
		Folders:       []*models.FolderNode{},
		Conversations: []models.ConversationNode{},
		Actions:       models.FolderActions,
	}

	if !expanded {
		return node, nil
	}

	for _, child := range p.children[f.ID] {
		childNode, err := r.renderFolder(p, child, path, depth+1)
		if err != nil {
			return nil, err
		}
		if childNode != nil {
			node.Folders = append(node.Folders, childNode)
		}
	}
	for _, c := range p.matches[f.ID] {
		node.Conversations = append(node.Conversations, conversationNode(c, p.in.SelectedID))
	}

	return node, nil
}

func conversationNode(c *models.Conversation, selectedID *string) models.ConversationNode {
	tags := make([]string, len(c.Tags))
	copy(tags, c.Tags)
	return models.ConversationNode{
		ID:           c.ID,
		Label:        c.Title,
		FolderID:     models.NormalizeParentID(c.FolderID),
		Tags:         tags,
		Selected:     selectedID != nil && *selectedID == c.ID,
		Starred:      c.IsStarred,
		MessageCount: len(c.Messages),
		ModifiedAt:   c.ModifiedAt,
		Actions:      models.ConversationActions,
	}
}
