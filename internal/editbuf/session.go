// Package editbuf holds the in-flight text of the block being edited.
// A Session is a rune buffer with a cursor; all indices are rune offsets,
// never byte offsets, so multi-byte input behaves like any other character.
package editbuf

import (
	"strings"
	"unicode"

	"rhizome/internal/markdown"
)

var pairs = map[rune]rune{
	'(': ')',
	'[': ']',
	'{': '}',
}

// Session is one editing pass over a single block. It is created when the
// user enters insert mode and discarded on commit or cancel; it never
// touches the block tree itself.
type Session struct {
	uid    string
	orig   string
	runes  []rune
	cursor int
}

// NewSession starts editing the given block text with the cursor at the end.
func NewSession(uid, text string) *Session {
	r := []rune(text)
	return &Session{uid: uid, orig: text, runes: r, cursor: len(r)}
}

// NewSessionAtStart is used for freshly created blocks, which begin empty.
func NewSessionAtStart(uid string) *Session {
	return &Session{uid: uid}
}

func (s *Session) UID() string { return s.uid }

// Rename points the session at a new uid, used when the backend confirms
// a create and the block's temporary uid is replaced mid-edit.
func (s *Session) Rename(uid string) { s.uid = uid }

func (s *Session) Text() string { return string(s.runes) }

func (s *Session) Cursor() int { return s.cursor }

func (s *Session) Len() int { return len(s.runes) }

// Modified reports whether the buffer differs from the text the session
// started with.
func (s *Session) Modified() bool { return string(s.runes) != s.orig }

// Original returns the text as it was when the session began.
func (s *Session) Original() string { return s.orig }

// Insert types one rune at the cursor. Openers insert their closing pair
// with the cursor left between them; typing a closer that is already the
// next rune skips over it instead of inserting a duplicate.
func (s *Session) Insert(r rune) {
	if isCloser(r) && s.cursor < len(s.runes) && s.runes[s.cursor] == r {
		s.cursor++
		return
	}
	if close, ok := pairs[r]; ok {
		s.insertRunes(r, close)
		s.cursor--
		return
	}
	s.insertRunes(r)
}

// InsertString types a whole string verbatim, with no pairing logic.
// Paste goes through here.
func (s *Session) InsertString(str string) {
	s.insertRunes([]rune(str)...)
}

func (s *Session) insertRunes(rs ...rune) {
	s.runes = append(s.runes[:s.cursor], append(rs, s.runes[s.cursor:]...)...)
	s.cursor += len(rs)
}

// Backspace deletes the rune before the cursor. Deleting an opener whose
// matching closer sits right at the cursor removes both, undoing an
// auto-pair in a single keystroke.
func (s *Session) Backspace() {
	if s.cursor == 0 {
		return
	}
	prev := s.runes[s.cursor-1]
	if close, ok := pairs[prev]; ok && s.cursor < len(s.runes) && s.runes[s.cursor] == close {
		s.runes = append(s.runes[:s.cursor-1], s.runes[s.cursor+1:]...)
		s.cursor--
		return
	}
	s.runes = append(s.runes[:s.cursor-1], s.runes[s.cursor:]...)
	s.cursor--
}

// DeleteForward deletes the rune at the cursor.
func (s *Session) DeleteForward() {
	if s.cursor >= len(s.runes) {
		return
	}
	s.runes = append(s.runes[:s.cursor], s.runes[s.cursor+1:]...)
}

// KillToEnd deletes from the cursor to the end of the buffer.
func (s *Session) KillToEnd() {
	s.runes = s.runes[:s.cursor]
}

func (s *Session) Left() {
	if s.cursor > 0 {
		s.cursor--
	}
}

func (s *Session) Right() {
	if s.cursor < len(s.runes) {
		s.cursor++
	}
}

func (s *Session) Home() { s.cursor = 0 }

// SetCursor moves the cursor to an absolute rune offset, clamped to the
// buffer.
func (s *Session) SetCursor(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.runes) {
		pos = len(s.runes)
	}
	s.cursor = pos
}

func (s *Session) End() { s.cursor = len(s.runes) }

// WordLeft moves to the start of the previous word: skip any whitespace
// to the left, then skip the word itself.
func (s *Session) WordLeft() {
	for s.cursor > 0 && unicode.IsSpace(s.runes[s.cursor-1]) {
		s.cursor--
	}
	for s.cursor > 0 && !unicode.IsSpace(s.runes[s.cursor-1]) {
		s.cursor--
	}
}

// WordRight moves past the current word, then past any whitespace after it.
func (s *Session) WordRight() {
	for s.cursor < len(s.runes) && !unicode.IsSpace(s.runes[s.cursor]) {
		s.cursor++
	}
	for s.cursor < len(s.runes) && unicode.IsSpace(s.runes[s.cursor]) {
		s.cursor++
	}
}

// ReplaceRange swaps the rune span [start, end) for the given text and
// leaves the cursor after the replacement. Out-of-range spans are clamped.
func (s *Session) ReplaceRange(start, end int, text string) {
	if start < 0 {
		start = 0
	}
	if end > len(s.runes) {
		end = len(s.runes)
	}
	if start > end {
		start = end
	}
	repl := []rune(text)
	s.runes = append(s.runes[:start], append(repl, s.runes[end:]...)...)
	s.cursor = start + len(repl)
}

// CycleTodo rotates the buffer's todo marker and shifts the cursor by the
// length change, so it stays on the same visible character.
func (s *Session) CycleTodo() {
	text, delta := markdown.CycleTodo(string(s.runes))
	s.runes = []rune(text)
	s.cursor += delta
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor > len(s.runes) {
		s.cursor = len(s.runes)
	}
}

// RefTrigger reports whether the cursor sits exactly inside a freshly
// opened block reference, i.e. between "((" and "))". This is the moment
// the autocomplete overlay opens.
func (s *Session) RefTrigger() bool {
	c := s.cursor
	return c >= 2 && c+1 < len(s.runes) &&
		s.runes[c-2] == '(' && s.runes[c-1] == '(' &&
		s.runes[c] == ')' && s.runes[c+1] == ')'
}

// RefQuery locates the block-reference query around the cursor: the text
// between the nearest "((" to the left and "))" to the right. It returns
// the rune span covering the whole "((query))" token.
func (s *Session) RefQuery() (query string, start, end int, ok bool) {
	text := string(s.runes[:s.cursor])
	open := strings.LastIndex(text, "((")
	if open < 0 {
		return "", 0, 0, false
	}
	openRunes := len([]rune(text[:open]))
	rest := string(s.runes[s.cursor:])
	close := strings.Index(rest, "))")
	if close < 0 {
		return "", 0, 0, false
	}
	closeRunes := s.cursor + len([]rune(rest[:close]))
	query = string(s.runes[openRunes+2 : closeRunes])
	if strings.Contains(query, "))") {
		return "", 0, 0, false
	}
	return query, openRunes, closeRunes + 2, true
}

// AcceptRef replaces the "((query))" token around the cursor with a
// reference to the chosen block, followed by a space so typing continues
// naturally.
func (s *Session) AcceptRef(uid string) bool {
	_, start, end, ok := s.RefQuery()
	if !ok {
		return false
	}
	s.ReplaceRange(start, end, "(("+uid+")) ")
	return true
}

func isCloser(r rune) bool {
	for _, c := range pairs {
		if c == r {
			return true
		}
	}
	return false
}
