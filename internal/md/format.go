// Package md renders mirrored entities as markdown.
package md

import (
	"fmt"
	"strings"

	"github.com/JohanCodinha/ghmirror/internal/store"
)

// ToMarkdown renders an item and its comments as a markdown document.
func ToMarkdown(item *store.Item, comments []store.Comment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	fmt.Fprintf(&b, "- id: %s\n", item.ID)
	fmt.Fprintf(&b, "- state: %s\n", item.State)
	fmt.Fprintf(&b, "- author: %s\n", item.Author)
	fmt.Fprintf(&b, "- updated: %s\n", item.UpdatedAt)
	if item.RemoteDeleted {
		b.WriteString("- remote-deleted: true\n")
	}
	b.WriteString("\n")

	if item.Body != "" {
		b.WriteString(item.Body)
		b.WriteString("\n")
	}

	for _, c := range comments {
		fmt.Fprintf(&b, "\n---\n\n**%s** (%s):\n\n%s\n", c.Author, c.CreatedAt, c.Body)
	}

	return b.String()
}
