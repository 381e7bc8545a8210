// Package markdown understands just enough of the Roam-flavored block syntax
// to derive reference sets and display text from raw block strings. It never
// fails: malformed input yields fewer refs, not an error.
package markdown

import "strings"

// Todo state markers. These are plain text prefixes in the block string, so
// they round-trip through the backend unchanged.
const (
	TodoMarker = "{{[[TODO]]}} "
	DoneMarker = "{{[[DONE]]}} "
)

// Ref is a reference extracted from block text.
type Ref struct {
	Kind  RefKind
	Value string // page title, tag name, or block uid
}

type RefKind int

const (
	RefPage  RefKind = iota // [[Page Title]]
	RefTag                  // #tag or #[[long tag]]
	RefBlock                // ((block-uid))
)

// ExtractRefs scans text for page links, tags and block refs. Unclosed or
// nested-beyond-reason markers are skipped; the scan never errors.
func ExtractRefs(text string) []Ref {
	var refs []Ref
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		switch {
		case hasAt(rs, i, "[["):
			if val, end, ok := scanBracketed(rs, i+2, "]]"); ok {
				refs = append(refs, Ref{Kind: RefPage, Value: val})
				i = end - 1
			}
		case hasAt(rs, i, "(("):
			if val, end, ok := scanBracketed(rs, i+2, "))"); ok {
				if uid := strings.TrimSpace(val); uid != "" && !strings.ContainsAny(uid, " \t\n") {
					refs = append(refs, Ref{Kind: RefBlock, Value: uid})
				}
				i = end - 1
			}
		case rs[i] == '#':
			if hasAt(rs, i+1, "[[") {
				if val, end, ok := scanBracketed(rs, i+3, "]]"); ok {
					refs = append(refs, Ref{Kind: RefTag, Value: val})
					i = end - 1
				}
				continue
			}
			j := i + 1
			for j < len(rs) && !isTagBoundary(rs[j]) {
				j++
			}
			if j > i+1 {
				refs = append(refs, Ref{Kind: RefTag, Value: string(rs[i+1 : j])})
				i = j - 1
			}
		}
	}
	return refs
}

// RefValues returns just the referenced identifiers (page titles, tags, block
// uids) for storing on a Block.
func RefValues(text string) []string {
	refs := ExtractRefs(text)
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Value)
	}
	return out
}

// PageLinks returns the distinct page titles linked from text, in order of
// first appearance. Tags count as page links in Roam semantics.
func PageLinks(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range ExtractRefs(text) {
		if r.Kind == RefBlock {
			continue
		}
		if isTodoTitle(r.Value) || seen[r.Value] {
			continue
		}
		seen[r.Value] = true
		out = append(out, r.Value)
	}
	return out
}

// BlockRefs returns the block uids referenced via ((uid)) tokens.
func BlockRefs(text string) []string {
	var out []string
	for _, r := range ExtractRefs(text) {
		if r.Kind == RefBlock {
			out = append(out, r.Value)
		}
	}
	return out
}

// TodoState reports which, if any, todo marker prefixes the text.
type TodoState int

const (
	TodoNone TodoState = iota
	TodoOpen
	TodoDone
)

func Todo(text string) TodoState {
	switch {
	case strings.HasPrefix(text, DoneMarker):
		return TodoDone
	case strings.HasPrefix(text, TodoMarker):
		return TodoOpen
	default:
		return TodoNone
	}
}

// CycleTodo rewrites text to the next todo state:
// none -> TODO -> DONE -> none. It returns the new text and the signed rune
// delta applied at the front (for cursor adjustment).
func CycleTodo(text string) (string, int) {
	switch Todo(text) {
	case TodoDone:
		return text[len(DoneMarker):], -len([]rune(DoneMarker))
	case TodoOpen:
		return DoneMarker + text[len(TodoMarker):], 0
	default:
		return TodoMarker + text, len([]rune(TodoMarker))
	}
}

// StripTodo removes a leading todo marker for display purposes.
func StripTodo(text string) string {
	switch Todo(text) {
	case TodoDone:
		return text[len(DoneMarker):]
	case TodoOpen:
		return text[len(TodoMarker):]
	default:
		return text
	}
}

func isTodoTitle(s string) bool { return s == "TODO" || s == "DONE" }

func hasAt(rs []rune, i int, tok string) bool {
	for j, c := range tok {
		if i+j >= len(rs) || rs[i+j] != c {
			return false
		}
	}
	return true
}

// scanBracketed reads runes from start until the closing token, tolerating one
// level of nested [[...]] inside page titles. Returns the inner value and the
// index just past the closer.
func scanBracketed(rs []rune, start int, closer string) (string, int, bool) {
	depth := 0
	for i := start; i < len(rs); i++ {
		if closer == "]]" && hasAt(rs, i, "[[") {
			depth++
			i++
			continue
		}
		if hasAt(rs, i, closer) {
			if depth > 0 {
				depth--
				i++
				continue
			}
			inner := string(rs[start:i])
			if inner == "" {
				return "", i + len(closer), false
			}
			return inner, i + len(closer), true
		}
		if rs[i] == '\n' {
			break
		}
	}
	return "", len(rs), false
}

func isTagBoundary(r rune) bool {
	switch r {
	case ' ', '\t', '\n', ',', '.', ';', ':', '!', '?', ')', ']', '}', '#':
		return true
	}
	return false
}
