package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"convtree/internal/config"
	"convtree/internal/domain/models"
	"convtree/internal/service/sidebar"
)

var (
	folderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	starStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var (
	treeQuery     string
	treeTag       string
	treeFilter    string
	treeSort      string
	treeExpandAll bool
	treePolicy    string
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the sidebar tree",
	Example: `  convtree tree
  convtree tree --tag planning --sort title-asc
  convtree tree --filter starred --policy show --expand-all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := treeViewPatch()
		if err != nil {
			return err
		}
		policy, err := sidebar.ParseEmptyFolderPolicy(treePolicy)
		if err != nil {
			return err
		}

		cfg := config.Load()
		renderer := sidebar.NewTreeRenderer(sidebar.NewEngineForLocale(cfg.CollationLanguage), policy)

		ws, closeStorage, err := openWorkspace(cmd.Context(), renderer, newLogger())
		if err != nil {
			return err
		}
		defer closeStorage()

		if _, err := ws.UpdateView(patch); err != nil {
			return err
		}
		tree, err := ws.RenderWith(sidebar.RenderOptions{ExpandAll: treeExpandAll})
		if err != nil {
			return err
		}

		renderTree(cmd.OutOrStdout(), tree)
		return nil
	},
}

func init() {
	treeCmd.Flags().StringVarP(&treeQuery, "query", "q", "", "Search titles, tags and message content")
	treeCmd.Flags().StringVar(&treeTag, "tag", "", "Only conversations with this tag")
	treeCmd.Flags().StringVar(&treeFilter, "filter", "all", "Category: all, starred, untagged or unfiled")
	treeCmd.Flags().StringVar(&treeSort, "sort", "modified-desc", "Sort: modified-desc|asc, created-desc|asc, title-asc|desc")
	treeCmd.Flags().BoolVar(&treeExpandAll, "expand-all", false, "Render every folder expanded")
	treeCmd.Flags().StringVar(&treePolicy, "policy", "hide-when-filtering", "Empty folders: show, hide-when-filtering or hide")
}

func treeViewPatch() (models.ViewPatch, error) {
	category, err := models.ParseFilterCategory(treeFilter)
	if err != nil {
		return models.ViewPatch{}, err
	}
	sortKey, err := models.ParseSortKey(treeSort)
	if err != nil {
		return models.ViewPatch{}, err
	}

	patch := models.ViewPatch{
		Query:    &treeQuery,
		TagSet:   true,
		Category: &category,
		Sort:     &sortKey,
	}
	if treeTag != "" {
		patch.Tag = &treeTag
	}
	return patch, nil
}

// renderTree prints folders depth-first, then unfiled conversations
func renderTree(w io.Writer, tree *models.VisibleTree) {
	for _, f := range tree.Folders {
		renderFolder(w, f)
	}
	for _, c := range tree.Conversations {
		renderConversation(w, c, 0)
	}

	fmt.Fprintf(w, "\n%s\n", dimStyle.Render(fmt.Sprintf("%d of %d conversations", tree.VisibleConversations, tree.TotalConversations)))
	if len(tree.Tags) > 0 {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("tags:"), tagStyle.Render(strings.Join(tree.Tags, ", ")))
	}
}

func renderFolder(w io.Writer, f *models.FolderNode) {
	marker := "▸"
	if f.Expanded {
		marker = "▾"
	}
	fmt.Fprintf(w, "%s%s %s %s\n",
		indent(f.Depth), marker, folderStyle.Render(f.Label), countStyle.Render(fmt.Sprintf("(%d)", f.MatchCount)))

	for _, child := range f.Folders {
		renderFolder(w, child)
	}
	for _, c := range f.Conversations {
		renderConversation(w, c, f.Depth+1)
	}
}

func renderConversation(w io.Writer, c models.ConversationNode, depth int) {
	label := titleStyle.Render(c.Label)
	if c.Selected {
		label = selectedStyle.Render(c.Label)
	}

	var b strings.Builder
	b.WriteString(indent(depth))
	if c.Starred {
		b.WriteString(starStyle.Render("★") + " ")
	} else {
		b.WriteString("  ")
	}
	b.WriteString(label)
	for _, t := range c.Tags {
		b.WriteString(" " + tagStyle.Render("#"+t))
	}
	if c.MessageCount > 0 {
		b.WriteString(" " + dimStyle.Render(fmt.Sprintf("%d msgs", c.MessageCount)))
	}
	fmt.Fprintln(w, b.String())
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
