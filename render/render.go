// Package render implements the message-merge renderer: once a for-each
// group's duplicated edges have all produced content, their stamped
// Version entries are merged back into one block of text for the edge
// they all converge on (spec.md §4.5 "message-merge"). The destination
// edge's Modifier selects table/list/headers/paragraph layout; the
// merged markdown can then be rendered to HTML via ToHTML.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/objects"
)

// Merge renders a set of versioned content blocks into one markdown
// string, ordered outermost-version-first (objects.Version.Index
// ascending, matching the order Versions are stamped in compiler's
// for-each expansion), grouped by (Header, SubHeader) per mode.
func Merge(versions []objects.Version, mode compiler.Modifier) string {
	sorted := append([]objects.Version(nil), versions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	switch mode {
	case compiler.ModifierTable:
		return mergeTable(sorted)
	case compiler.ModifierList:
		return mergeList(sorted)
	case compiler.ModifierHeaders:
		return mergeHeaders(sorted)
	default:
		return mergeParagraphs(sorted)
	}
}

func mergeParagraphs(versions []objects.Version) string {
	var parts []string
	for _, v := range versions {
		parts = append(parts, strings.TrimSpace(v.Content))
	}
	return strings.Join(parts, "\n\n")
}

func mergeList(versions []objects.Version) string {
	var b strings.Builder
	for _, v := range versions {
		fmt.Fprintf(&b, "- %s\n", oneLine(v.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

func mergeHeaders(versions []objects.Version) string {
	var b strings.Builder
	for i, v := range versions {
		header := v.Header
		if header == "" {
			header = fmt.Sprintf("Version %d", v.Index)
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n%s", header, strings.TrimSpace(v.Content))
	}
	return b.String()
}

// mergeTable groups versions by SubHeader into rows and by Header into
// columns, producing a GitHub-flavored markdown table. When the versions
// carry at most one distinct Header and at most one distinct SubHeader, it
// falls back to mergeParagraphs (one paragraph per version).
func mergeTable(versions []objects.Version) string {
	cols := uniqueOrdered(versions, func(v objects.Version) string { return v.Header })
	rows := uniqueOrdered(versions, func(v objects.Version) string { return v.SubHeader })

	if len(cols) <= 1 && len(rows) <= 1 {
		return mergeParagraphs(versions)
	}

	cell := make(map[[2]string]string, len(versions))
	for _, v := range versions {
		cell[[2]string{v.Header, v.SubHeader}] = oneLine(v.Content)
	}

	var b strings.Builder
	b.WriteString("|")
	for _, c := range cols {
		label := c
		if label == "" {
			label = " "
		}
		fmt.Fprintf(&b, " %s |", label)
	}
	b.WriteString("\n|")
	for range cols {
		b.WriteString(" --- |")
	}
	for _, r := range rows {
		b.WriteString("\n|")
		for _, c := range cols {
			fmt.Fprintf(&b, " %s |", cell[[2]string{c, r}])
		}
	}
	return b.String()
}

func uniqueOrdered(versions []objects.Version, key func(objects.Version) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range versions {
		k := key(v)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func oneLine(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

// ToHTML renders merged markdown to sanitized-ready HTML, for callers that
// display merge results rather than feed them back into the graph as
// plain text.
func ToHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(md))
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	return markdown.Render(doc, renderer)
}
