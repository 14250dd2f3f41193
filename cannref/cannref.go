// Package cannref reifies the `{{...}}` reference grammar referenced by
// spec.md §4.5/§9 as a named parser instead of scattered regexes: variables
// (`{{name}}`), note links (`{{[[Note]]}}`, optionally with modifiers),
// floating-node lookups (`{{[floating]}}`), dynamic note names (`{{@var}}`),
// dynamic-create notes (`{{+@create}}`) and loop indices (`{{#}}`, `{{##}}`,
// ...).
package cannref

import (
	"regexp"
	"strings"
)

// Kind identifies which reference grammar production matched.
type Kind string

const (
	KindVariable      Kind = "variable"
	KindNoteLink      Kind = "note-link"
	KindFloating      Kind = "floating"
	KindDynamicNote   Kind = "dynamic-note"
	KindDynamicCreate Kind = "dynamic-create"
	KindLoopIndex     Kind = "loop-index"
)

// Reference is one parsed `{{...}}` placeholder found inside node text.
type Reference struct {
	Kind Kind
	// Raw is the full matched text, including the surrounding braces.
	Raw string
	// Name is the resolved variable/note/floating name (braces, sigils and
	// modifiers stripped).
	Name string
	// Modifiers holds any `(modifier)` suffix tokens on a note-link
	// reference, e.g. `{{[[Note]](path)}}`.
	Modifiers []string
	// Depth is the number of `#` characters in a loop-index reference
	// (`{{#}}` => 1, `{{##}}` => 2, ...).
	Depth int
}

var pattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Parse extracts every `{{...}}` placeholder from text in left-to-right
// order, classifying each into a Reference.
func Parse(text string) []Reference {
	matches := pattern.FindAllStringSubmatch(text, -1)
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, classify(m[0], strings.TrimSpace(m[1])))
	}
	return refs
}

func classify(raw, body string) Reference {
	switch {
	case isAllHashes(body):
		return Reference{Kind: KindLoopIndex, Raw: raw, Depth: len(body)}
	case strings.HasPrefix(body, "+@"):
		return Reference{Kind: KindDynamicCreate, Raw: raw, Name: strings.TrimPrefix(body, "+@")}
	case strings.HasPrefix(body, "@"):
		return Reference{Kind: KindDynamicNote, Raw: raw, Name: strings.TrimPrefix(body, "@")}
	case strings.HasPrefix(body, "[[") && strings.Contains(body, "]]"):
		name, mods := splitNoteLink(body)
		return Reference{Kind: KindNoteLink, Raw: raw, Name: name, Modifiers: mods}
	case strings.HasPrefix(body, "[") && strings.HasSuffix(body, "]"):
		return Reference{Kind: KindFloating, Raw: raw, Name: strings.TrimSuffix(strings.TrimPrefix(body, "["), "]")}
	default:
		return Reference{Kind: KindVariable, Raw: raw, Name: body}
	}
}

func isAllHashes(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '#' {
			return false
		}
	}
	return true
}

// splitNoteLink splits `[[Note]](mod1)(mod2)` into ("Note", ["mod1","mod2"]).
func splitNoteLink(body string) (string, []string) {
	end := strings.Index(body, "]]")
	name := body[2:end]
	rest := body[end+2:]
	var mods []string
	for len(rest) > 0 {
		if rest[0] != '(' {
			break
		}
		close := strings.Index(rest, ")")
		if close < 0 {
			break
		}
		mods = append(mods, rest[1:close])
		rest = rest[close+1:]
	}
	return name, mods
}

// IsSoleContent reports whether text is made of exactly one `{{...}}`
// reference with no surrounding characters and no internal newline — the
// "text matching {{...}} alone" rule used by the compiler's content-node
// classifier (spec.md §4.2 step B).
func IsSoleContent(text string) (Reference, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.Contains(trimmed, "\n") {
		return Reference{}, false
	}
	refs := Parse(trimmed)
	if len(refs) != 1 {
		return Reference{}, false
	}
	if refs[0].Raw != trimmed {
		return Reference{}, false
	}
	return refs[0], true
}

// Substitute replaces every `{{...}}` placeholder in text with the result of
// resolve. When resolve reports ok=false, the placeholder is left verbatim
// (spec.md §7's "textual fallback ({{name}})" for recoverable warnings).
func Substitute(text string, resolve func(Reference) (string, bool)) string {
	return pattern.ReplaceAllStringFunc(text, func(raw string) string {
		body := strings.TrimSpace(raw[2 : len(raw)-2])
		ref := classify(raw, body)
		if val, ok := resolve(ref); ok {
			return val
		}
		return raw
	})
}
