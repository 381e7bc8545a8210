package editbuf

import "testing"

func typeString(s *Session, str string) {
	for _, r := range str {
		s.Insert(r)
	}
}

func TestInsertAutoPairs(t *testing.T) {
	s := NewSessionAtStart("b1")
	s.Insert('(')
	if s.Text() != "()" || s.Cursor() != 1 {
		t.Fatalf("text=%q cursor=%d", s.Text(), s.Cursor())
	}
	// Typing the closer steps over the auto-inserted one.
	s.Insert(')')
	if s.Text() != "()" || s.Cursor() != 2 {
		t.Fatalf("after skip: text=%q cursor=%d", s.Text(), s.Cursor())
	}
}

func TestDoubleParenOpensRefTrigger(t *testing.T) {
	s := NewSessionAtStart("b1")
	typeString(s, "see ((")
	if s.Text() != "see (())" {
		t.Fatalf("text=%q", s.Text())
	}
	if !s.RefTrigger() {
		t.Fatal("cursor between (( and )) should trigger")
	}
}

func TestBackspaceRemovesEmptyPair(t *testing.T) {
	s := NewSessionAtStart("b1")
	s.Insert('[')
	s.Backspace()
	if s.Text() != "" || s.Cursor() != 0 {
		t.Fatalf("text=%q cursor=%d", s.Text(), s.Cursor())
	}
}

func TestBackspaceMidWord(t *testing.T) {
	s := NewSession("b1", "héllo")
	s.Left()
	s.Backspace()
	if s.Text() != "hélo" || s.Cursor() != 3 {
		t.Fatalf("text=%q cursor=%d", s.Text(), s.Cursor())
	}
}

func TestDeleteForwardAndKill(t *testing.T) {
	s := NewSession("b1", "abcdef")
	s.Home()
	s.DeleteForward()
	if s.Text() != "bcdef" {
		t.Fatalf("text=%q", s.Text())
	}
	s.Right()
	s.Right()
	s.KillToEnd()
	if s.Text() != "bc" || s.Cursor() != 2 {
		t.Fatalf("text=%q cursor=%d", s.Text(), s.Cursor())
	}
}

func TestWordMovement(t *testing.T) {
	s := NewSession("b1", "one  two three")
	s.WordLeft()
	if s.Cursor() != 9 {
		t.Fatalf("WordLeft cursor=%d", s.Cursor())
	}
	s.WordLeft()
	if s.Cursor() != 5 {
		t.Fatalf("WordLeft x2 cursor=%d", s.Cursor())
	}
	s.Home()
	s.WordRight()
	if s.Cursor() != 5 {
		t.Fatalf("WordRight cursor=%d", s.Cursor())
	}
}

func TestReplaceRangeClamps(t *testing.T) {
	s := NewSession("b1", "hello world")
	s.ReplaceRange(6, 99, "there")
	if s.Text() != "hello there" || s.Cursor() != 11 {
		t.Fatalf("text=%q cursor=%d", s.Text(), s.Cursor())
	}
}

func TestCycleTodoKeepsCursorOnText(t *testing.T) {
	s := NewSession("b1", "buy milk")
	s.Home()
	s.WordRight()
	before := s.Cursor()
	s.CycleTodo()
	if s.Text() != "{{[[TODO]]}} buy milk" {
		t.Fatalf("text=%q", s.Text())
	}
	if got, want := s.Cursor(), before+len([]rune("{{[[TODO]]}} ")); got != want {
		t.Fatalf("cursor=%d want %d", got, want)
	}
	s.CycleTodo()
	if s.Text() != "{{[[DONE]]}} buy milk" {
		t.Fatalf("text=%q", s.Text())
	}
	s.CycleTodo()
	if s.Text() != "buy milk" {
		t.Fatalf("text=%q", s.Text())
	}
}

func TestRefQueryAndAccept(t *testing.T) {
	s := NewSessionAtStart("b1")
	typeString(s, "link ((proj")
	q, start, end, ok := s.RefQuery()
	if !ok || q != "proj" || start != 5 || end != 13 {
		t.Fatalf("q=%q start=%d end=%d ok=%v", q, start, end, ok)
	}
	if !s.AcceptRef("abc123XYZ") {
		t.Fatal("AcceptRef failed")
	}
	if s.Text() != "link ((abc123XYZ)) " {
		t.Fatalf("text=%q", s.Text())
	}
	if s.Cursor() != len([]rune(s.Text())) {
		t.Fatalf("cursor=%d", s.Cursor())
	}
}

func TestModified(t *testing.T) {
	s := NewSession("b1", "same")
	if s.Modified() {
		t.Fatal("untouched session reported modified")
	}
	s.Insert('!')
	if !s.Modified() {
		t.Fatal("edit not reported")
	}
	s.Backspace()
	if s.Modified() {
		t.Fatal("reverted buffer still reported modified")
	}
}
