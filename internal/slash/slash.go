// Package slash is the insert-mode command palette: typing "/" at the
// start of a word opens a menu of text shortcuts that rewrite the edit
// buffer in place, replacing the "/query" token the user typed.
package slash

import (
	"strings"
	"time"
	"unicode"

	"rhizome/internal/api"
	"rhizome/internal/editbuf"
	"rhizome/internal/markdown"
)

// Command is one palette entry. Name is what the typed query matches
// against; Desc is the one-line description shown in the menu.
type Command struct {
	Name string
	Desc string
	act  action
}

// Apply runs the command against the session. slashPos is the rune
// offset of the "/" that opened the palette and queryLen the length of
// the query typed after it; the whole token is consumed.
func (c Command) Apply(s *editbuf.Session, slashPos, queryLen int, now time.Time) {
	c.act.apply(s, slashPos, queryLen, now)
}

type action interface {
	apply(s *editbuf.Session, slashPos, queryLen int, now time.Time)
}

// insert swaps the token for fixed text.
type insert struct{ text string }

func (a insert) apply(s *editbuf.Session, pos, qlen int, _ time.Time) {
	s.ReplaceRange(pos, pos+1+qlen, a.text)
}

// pair swaps the token for an open/close marker pair with the cursor
// left between them, ready for the wrapped text.
type pair struct{ open, close string }

func (a pair) apply(s *editbuf.Session, pos, qlen int, _ time.Time) {
	s.ReplaceRange(pos, pos+1+qlen, a.open+a.close)
	s.SetCursor(pos + len([]rune(a.open)))
}

// prepend drops the token and puts a prefix at the start of the block.
// An existing todo marker is replaced rather than stacked.
type prepend struct{ text string }

func (a prepend) apply(s *editbuf.Session, pos, qlen int, _ time.Time) {
	s.ReplaceRange(pos, pos+1+qlen, "")
	cur := s.Cursor()
	text := s.Text()
	if stripped := markdown.StripTodo(text); stripped != text {
		n := len([]rune(text)) - len([]rune(stripped))
		s.ReplaceRange(0, n, "")
		cur -= n
		if cur < 0 {
			cur = 0
		}
	}
	s.ReplaceRange(0, 0, a.text)
	s.SetCursor(cur + len([]rune(a.text)))
}

// date swaps the token for a [[daily page]] link offset in days from now.
type date struct{ days int }

func (a date) apply(s *editbuf.Session, pos, qlen int, now time.Time) {
	title := api.DailyNoteTitle(now.AddDate(0, 0, a.days))
	s.ReplaceRange(pos, pos+1+qlen, "[["+title+"]]")
}

// clock swaps the token for the current wall-clock time.
type clock struct{}

func (clock) apply(s *editbuf.Session, pos, qlen int, now time.Time) {
	s.ReplaceRange(pos, pos+1+qlen, now.Format("15:04"))
}

// codeBlock swaps the token for an empty fenced block with the cursor on
// the blank line between the fences.
type codeBlock struct{}

func (codeBlock) apply(s *editbuf.Session, pos, qlen int, _ time.Time) {
	s.ReplaceRange(pos, pos+1+qlen, "```\n\n```")
	s.SetCursor(pos + 4)
}

var commands = []Command{
	{Name: "todo", Desc: "Add TODO checkbox", act: prepend{markdown.TodoMarker}},
	{Name: "done", Desc: "Add DONE checkbox", act: prepend{markdown.DoneMarker}},
	{Name: "date", Desc: "Insert today's date", act: date{0}},
	{Name: "yesterday", Desc: "Insert yesterday's date", act: date{-1}},
	{Name: "tomorrow", Desc: "Insert tomorrow's date", act: date{1}},
	{Name: "time", Desc: "Insert current time", act: clock{}},
	{Name: "code", Desc: "Insert code block", act: codeBlock{}},
	{Name: "hr", Desc: "Horizontal rule", act: insert{"---"}},
	{Name: "bold", Desc: "Bold text", act: pair{"**", "**"}},
	{Name: "italic", Desc: "Italic text", act: pair{"__", "__"}},
	{Name: "highlight", Desc: "Highlight text", act: pair{"^^", "^^"}},
	{Name: "strikethrough", Desc: "Strikethrough text", act: pair{"~~", "~~"}},
	{Name: "h1", Desc: "Heading 1", act: prepend{"# "}},
	{Name: "h2", Desc: "Heading 2", act: prepend{"## "}},
	{Name: "h3", Desc: "Heading 3", act: prepend{"### "}},
	{Name: "blockquote", Desc: "Quote prefix", act: prepend{"> "}},
	{Name: "embed", Desc: "Embed block or page", act: pair{"{{[[embed]]: ", "}}"}},
	{Name: "latex", Desc: "LaTeX formula", act: pair{"$$", "$$"}},
}

// Commands returns every palette entry in menu order.
func Commands() []Command {
	out := make([]Command, len(commands))
	copy(out, commands)
	return out
}

// Filter returns the commands whose name contains the query,
// case-insensitively. The empty query matches everything.
func Filter(query string) []Command {
	q := strings.ToLower(query)
	var out []Command
	for _, c := range commands {
		if strings.Contains(c.Name, q) {
			out = append(out, c)
		}
	}
	return out
}

// Trigger reports whether the rune just typed should open the palette:
// the cursor sits right after a "/" that begins the buffer or follows
// whitespace. A slash mid-word, as in a URL or path, does not trigger.
// The returned offset is the slash's rune position.
func Trigger(s *editbuf.Session) (int, bool) {
	rs := []rune(s.Text())
	c := s.Cursor()
	if c == 0 || c > len(rs) || rs[c-1] != '/' {
		return 0, false
	}
	pos := c - 1
	if pos == 0 || unicode.IsSpace(rs[pos-1]) {
		return pos, true
	}
	return 0, false
}
