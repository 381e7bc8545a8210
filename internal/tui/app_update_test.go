package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rhizome/internal/api"
	"rhizome/internal/config"
	"rhizome/internal/markdown"
	"rhizome/internal/model"
	"rhizome/internal/syncer"
)

type fakePuller struct {
	page model.Page
	refs map[string]string
}

func (f fakePuller) PullPage(ctx context.Context, uid string, date time.Time) (model.Page, error) {
	return f.page, nil
}

func (f fakePuller) PullBlockText(ctx context.Context, uid string) (string, error) {
	return f.refs[uid], nil
}

func (f fakePuller) PageUIDByTitle(ctx context.Context, title string) (string, error) {
	if title == f.page.Title {
		return f.page.UID, nil
	}
	return "", api.ErrNotFound
}

type nopSubmitter struct{}

func (nopSubmitter) Write(ctx context.Context, a api.WriteAction) (string, error) {
	return "", nil
}

func testPage() model.Page {
	return model.Page{
		UID:   "02-21-2026",
		Title: "February 21st, 2026",
		Date:  time.Date(2026, 2, 21, 0, 0, 0, 0, time.UTC),
		Blocks: []model.Block{
			{UID: "a", Text: "alpha", Order: 0, Children: []model.Block{
				{UID: "a1", Text: "alpha child", Order: 0},
			}},
			{UID: "b", Text: "beta", Order: 1},
			{UID: "c", Text: "gamma", Order: 2},
		},
	}
}

func newTestModel(t *testing.T) appModel {
	t.Helper()
	cfg := config.Default()
	cfg.Graph = config.GraphConfig{Name: "g", Token: "t"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := syncer.NewEngine(nopSubmitter{}, log)

	page := testPage()
	m := newAppModel(context.Background(), cfg, log, fakePuller{page: page}, eng, nil)

	mm, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = mm.(appModel)
	mm, _ = m.Update(pageLoadedMsg{page: page})
	return mm.(appModel)
}

func press(m appModel, keys ...string) appModel {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "backspace":
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "ctrl+r":
			msg = tea.KeyMsg{Type: tea.KeyCtrlR}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		mm, _ := m.Update(msg)
		m = mm.(appModel)
	}
	return m
}

func typeText(m appModel, s string) appModel {
	for _, r := range s {
		if r == ' ' {
			m = press(m, "space")
			continue
		}
		m = press(m, string(r))
	}
	return m
}

func rowUIDs(m appModel) []string {
	var out []string
	for _, r := range m.rows {
		out = append(out, r.Block.UID)
	}
	return out
}

func TestEditCommitUpdatesTreeAndQueuesWrite(t *testing.T) {
	m := newTestModel(t)

	m = press(m, "a") // edit block "a", cursor at end
	if m.mode != modeInsert {
		t.Fatalf("mode = %v", m.mode)
	}
	m = typeText(m, " two")
	m = press(m, "esc")

	if m.mode != modeNormal {
		t.Fatalf("mode after esc = %v", m.mode)
	}
	b, _ := m.tree.Block("a")
	if b.Text != "alpha two" || !b.Dirty {
		t.Fatalf("block = %+v", b)
	}
	if m.eng.PendingCount() != 1 {
		t.Fatalf("pending = %d", m.eng.PendingCount())
	}
	if !m.hist.CanUndo() {
		t.Fatal("commit must be undoable")
	}
}

func TestUndoRestoresTextAndQueuesCompensatingWrite(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "a")
	m = typeText(m, "!")
	m = press(m, "esc")
	before := m.eng.PendingCount()

	m = press(m, "u")
	b, _ := m.tree.Block("a")
	if b.Text != "alpha" {
		t.Fatalf("text after undo = %q", b.Text)
	}
	if m.eng.PendingCount() != before+1 {
		t.Fatal("undo must queue its own write")
	}

	m = press(m, "ctrl+r")
	b, _ = m.tree.Block("a")
	if b.Text != "alpha!" {
		t.Fatalf("text after redo = %q", b.Text)
	}
}

func TestCreateBelowCommitsOnEsc(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "o")
	if m.mode != modeInsert || m.session == nil {
		t.Fatal("o must open an insert session")
	}
	uid := m.session.UID()
	if !syncer.IsTemp(uid) {
		t.Fatalf("placeholder uid = %q", uid)
	}
	m = typeText(m, "new thought")
	m = press(m, "esc")

	b, ok := m.tree.Block(uid)
	if !ok || b.Text != "new thought" || !b.Dirty {
		t.Fatalf("created block = %+v ok=%v", b, ok)
	}
	// Created between a and b at the top level.
	want := []string{"a", "a1", uid, "b", "c"}
	got := rowUIDs(m)
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	if m.eng.PendingCount() != 1 {
		t.Fatalf("pending = %d", m.eng.PendingCount())
	}
}

func TestEmptyCreateLeavesNoBlock(t *testing.T) {
	m := newTestModel(t)
	before := rowUIDs(m)
	m = press(m, "o", "esc")

	if m.mode != modeNormal {
		t.Fatalf("mode = %v", m.mode)
	}
	got := rowUIDs(m)
	if strings.Join(got, " ") != strings.Join(before, " ") {
		t.Fatalf("rows = %v, want %v", got, before)
	}
	if m.eng.PendingCount() != 0 {
		t.Fatal("abandoned placeholder must not sync")
	}
	if m.hist.CanUndo() {
		t.Fatal("abandoned placeholder must not be undoable")
	}
}

func TestEnterCommitsAndOpensSibling(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "o")
	m = typeText(m, "one")
	first := m.session.UID()
	m = press(m, "enter")

	if m.mode != modeInsert || m.session == nil {
		t.Fatal("enter must chain into a new session")
	}
	if m.session.UID() == first {
		t.Fatal("enter must open a new placeholder")
	}
	m = typeText(m, "two")
	m = press(m, "esc")

	if b, _ := m.tree.Block(first); b.Text != "one" {
		t.Fatalf("first block = %+v", b)
	}
	if m.eng.PendingCount() != 2 {
		t.Fatalf("pending = %d", m.eng.PendingCount())
	}
}

func TestDeleteRequiresDoubleD(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "d")
	if len(m.rows) != 5 {
		t.Fatal("single d must not delete")
	}
	m = press(m, "j") // any other key cancels the pending delete
	m = press(m, "d", "j")
	if len(m.rows) != 5 {
		t.Fatal("canceled d must not delete")
	}
}

func TestDoubleDDeletesSubtreeAndUndoRestores(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "d", "d") // cursor on "a", which has child a1

	if _, ok := m.tree.Block("a"); ok {
		t.Fatal("dd must delete the block under the cursor")
	}
	if _, ok := m.tree.Block("a1"); ok {
		t.Fatal("child must go with its parent")
	}

	m = press(m, "u")
	if _, ok := m.tree.Block("a1"); !ok {
		t.Fatal("undo must restore the whole subtree")
	}
	want := []string{"a", "a1", "b", "c"}
	if strings.Join(rowUIDs(m), " ") != strings.Join(want, " ") {
		t.Fatalf("rows = %v", rowUIDs(m))
	}
}

func TestIndentOutdent(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "j", "j") // cursor on b
	if r, _ := m.currentRow(); r.Block.UID != "b" {
		t.Fatalf("cursor on %s", r.Block.UID)
	}

	m = press(m, ">")
	if p, _ := m.tree.Parent("b"); p != "a" {
		t.Fatalf("parent after indent = %s", p)
	}
	m = press(m, "<")
	if p, _ := m.tree.Parent("b"); p != "02-21-2026" {
		t.Fatalf("parent after outdent = %s", p)
	}

	// Both moves are undoable, in reverse order.
	m = press(m, "u")
	if p, _ := m.tree.Parent("b"); p != "a" {
		t.Fatal("undo must revert the outdent")
	}
	m = press(m, "u")
	if p, _ := m.tree.Parent("b"); p != "02-21-2026" {
		t.Fatal("second undo must revert the indent")
	}
}

func TestIndentFirstSiblingIsNoop(t *testing.T) {
	m := newTestModel(t)
	before := rowUIDs(m)
	m = press(m, ">")
	if strings.Join(rowUIDs(m), " ") != strings.Join(before, " ") {
		t.Fatal("indent of first sibling must be a no-op")
	}
}

func TestToggleTodoCycles(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "t")
	if b, _ := m.tree.Block("a"); markdown.Todo(b.Text) != markdown.TodoOpen {
		t.Fatalf("text = %q", b.Text)
	}
	m = press(m, "t")
	if b, _ := m.tree.Block("a"); markdown.Todo(b.Text) != markdown.TodoDone {
		t.Fatalf("text = %q", b.Text)
	}
	m = press(m, "t")
	if b, _ := m.tree.Block("a"); markdown.Todo(b.Text) != markdown.TodoNone {
		t.Fatalf("text = %q", b.Text)
	}
	m = press(m, "u")
	if b, _ := m.tree.Block("a"); markdown.Todo(b.Text) != markdown.TodoDone {
		t.Fatal("undo must step back through the cycle")
	}
}

func TestCollapseHidesSubtree(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "tab")
	want := []string{"a", "b", "c"}
	if strings.Join(rowUIDs(m), " ") != strings.Join(want, " ") {
		t.Fatalf("rows = %v", rowUIDs(m))
	}
	m = press(m, "tab")
	if len(m.rows) != 5 {
		t.Fatal("second tab must expand again")
	}
}

func TestTempUIDRewriteOnConfirm(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "o")
	m = typeText(m, "draft")
	tmp := m.session.UID()
	m = press(m, "esc")
	rev := m.tree.Revision(tmp)

	mm, _ := m.Update(syncResultMsg{result: syncer.Result{
		ID: 1, BlockUID: tmp, Revision: rev, NewUID: "perm-9",
	}})
	m = mm.(appModel)

	if _, ok := m.tree.Block(tmp); ok {
		t.Fatal("temp uid still in tree")
	}
	b, ok := m.tree.Block("perm-9")
	if !ok || b.Text != "draft" {
		t.Fatalf("renamed block = %+v ok=%v", b, ok)
	}
	if b.Dirty {
		t.Fatal("confirmation must clear the dirty flag")
	}
}

func TestStaleConfirmationKeepsDirty(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "a")
	m = typeText(m, "1")
	m = press(m, "esc")
	rev := m.tree.Revision("a")
	m = press(m, "a")
	m = typeText(m, "2")
	m = press(m, "esc")

	mm, _ := m.Update(syncResultMsg{result: syncer.Result{ID: 1, BlockUID: "a", Revision: rev}})
	m = mm.(appModel)
	if b, _ := m.tree.Block("a"); !b.Dirty {
		t.Fatal("older write confirmation must not clear a newer edit's dirty flag")
	}
}

func TestFailedWriteSurfacedAndRetryable(t *testing.T) {
	m := newTestModel(t)
	mm, _ := m.Update(syncResultMsg{result: syncer.Result{
		ID: 7, BlockUID: "a", Err: errors.New("boom"),
	}})
	m = mm.(appModel)

	if m.failed == nil || m.failed.ID != 7 {
		t.Fatalf("failed = %+v", m.failed)
	}
	if !strings.Contains(m.status, "sync failed") {
		t.Fatalf("status = %q", m.status)
	}
	m = press(m, "R")
	if m.failed != nil {
		t.Fatal("retry must clear the surfaced failure")
	}
}

func TestRefreshPreservesDirtyEdit(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "a")
	m = typeText(m, " local")
	m = press(m, "esc")

	refreshed := testPage()
	for i := range refreshed.Blocks {
		refreshed.Blocks[i].Text = "remote " + refreshed.Blocks[i].UID
	}
	mm, _ := m.Update(pageLoadedMsg{page: refreshed, refresh: true})
	m = mm.(appModel)

	if b, _ := m.tree.Block("a"); b.Text != "alpha local" {
		t.Fatalf("dirty block clobbered by refresh: %q", b.Text)
	}
	if b, _ := m.tree.Block("b"); b.Text != "remote b" {
		t.Fatalf("clean block not refreshed: %q", b.Text)
	}
}

func TestSearchJumpExpandsAncestors(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "tab") // collapse "a", hiding a1
	m = press(m, "/")
	if m.mode != modeSearch {
		t.Fatalf("mode = %v", m.mode)
	}
	m = typeText(m, "alpha child")
	if len(m.searchResults) != 1 || m.searchResults[0].UID != "a1" {
		t.Fatalf("results = %+v", m.searchResults)
	}
	m = press(m, "enter")

	if m.mode != modeNormal {
		t.Fatalf("mode = %v", m.mode)
	}
	if r, _ := m.currentRow(); r.Block.UID != "a1" {
		t.Fatalf("cursor on %s, want a1", r.Block.UID)
	}
}

func TestAutocompleteInsertsBlockRef(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "a")
	m = typeText(m, " see (")
	m = press(m, "(")
	if m.mode != modeAutocomplete {
		t.Fatalf("mode = %v", m.mode)
	}
	m = typeText(m, "gamma")
	if len(m.acResults) != 1 || m.acResults[0].UID != "c" {
		t.Fatalf("candidates = %+v", m.acResults)
	}
	m = press(m, "enter")
	if m.mode != modeInsert {
		t.Fatalf("mode = %v", m.mode)
	}
	if got := m.session.Text(); got != "alpha see ((c)) " {
		t.Fatalf("text = %q", got)
	}
	m = press(m, "esc")
	if b, _ := m.tree.Block("a"); !strings.Contains(b.Text, "((c))") {
		t.Fatalf("committed text = %q", b.Text)
	}
}

func TestAutocompleteEscLeavesLiteralText(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "a")
	m = press(m, "(", "(")
	m = press(m, "esc")
	if m.mode != modeInsert {
		t.Fatalf("esc from picker must return to insert, mode = %v", m.mode)
	}
	if m.session.Text() != "alpha(())" {
		t.Fatalf("text = %q", m.session.Text())
	}
}

func TestCreateEditUndoUndoRemovesBlock(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "o")
	uid := m.session.UID()
	m = typeText(m, "a")
	m = press(m, "esc")
	m = press(m, "a") // reopen at end
	m = typeText(m, "b")
	m = press(m, "esc")

	if b, _ := m.tree.Block(uid); b.Text != "ab" {
		t.Fatalf("text = %q", b.Text)
	}
	m = press(m, "u")
	if b, _ := m.tree.Block(uid); b.Text != "a" {
		t.Fatalf("text after first undo = %q", b.Text)
	}
	m = press(m, "u")
	if _, ok := m.tree.Block(uid); ok {
		t.Fatal("second undo must remove the created block")
	}
}

func TestStartPageResolvesTitle(t *testing.T) {
	m := newTestModel(t)
	msg := m.loadNamed("February 21st, 2026")()
	pl, ok := msg.(pageLoadedMsg)
	if !ok || pl.err != nil {
		t.Fatalf("msg = %#v", msg)
	}
	if pl.page.UID != "02-21-2026" {
		t.Fatalf("page = %+v", pl.page)
	}
}

func TestQuitFromNormalMode(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q must produce a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("msg = %v", cmd())
	}
}

func TestUndoAfterCreateConfirmRemovesBlock(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "o")
	m = typeText(m, "draft")
	tmp := m.session.UID()
	m = press(m, "esc")
	rev := m.tree.Revision(tmp)

	mm, _ := m.Update(syncResultMsg{result: syncer.Result{
		ID: 1, BlockUID: tmp, Revision: rev, NewUID: "perm-9",
	}})
	m = mm.(appModel)

	m = press(m, "u")
	if _, ok := m.tree.Block("perm-9"); ok {
		t.Fatal("undo of the create must remove the renamed block")
	}
	m = press(m, "ctrl+r")
	if b, ok := m.tree.Block("perm-9"); !ok || b.Text != "draft" {
		t.Fatalf("redo should re-create the renamed block, got %+v ok=%v", b, ok)
	}
}

func TestEditSessionSurvivesUIDConfirm(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "o")
	m = typeText(m, "draft")
	tmp := m.session.UID()
	m = press(m, "esc")
	rev := m.tree.Revision(tmp)

	// Reopen the block, then let the confirmation land mid-edit.
	m = press(m, "a")
	mm, _ := m.Update(syncResultMsg{result: syncer.Result{
		ID: 1, BlockUID: tmp, Revision: rev, NewUID: "perm-9",
	}})
	m = mm.(appModel)

	m = typeText(m, "!")
	m = press(m, "esc")

	b, ok := m.tree.Block("perm-9")
	if !ok || b.Text != "draft!" {
		t.Fatalf("edit lost across uid confirmation: %+v ok=%v", b, ok)
	}
	if !b.Dirty {
		t.Fatal("committed edit must be queued for sync")
	}
}

func TestSlashCommandRewritesBuffer(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "a")
	m = typeText(m, " /")
	if m.mode != modeSlash {
		t.Fatalf("mode = %v, want slash palette", m.mode)
	}
	m = typeText(m, "hr")
	if len(m.slashResults) != 1 || m.slashResults[0].Name != "hr" {
		t.Fatalf("filtered = %+v", m.slashResults)
	}
	m = press(m, "enter")
	if m.mode != modeInsert {
		t.Fatalf("mode after apply = %v", m.mode)
	}
	m = press(m, "esc")
	if b, _ := m.tree.Block("a"); b.Text != "alpha ---" {
		t.Fatalf("text = %q", b.Text)
	}
}

func TestSlashEscKeepsTypedText(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "a")
	m = typeText(m, " /bo")
	m = press(m, "esc")
	if m.mode != modeInsert {
		t.Fatalf("mode = %v, want insert", m.mode)
	}
	m = press(m, "esc")
	if b, _ := m.tree.Block("a"); b.Text != "alpha /bo" {
		t.Fatalf("text = %q", b.Text)
	}
}

func TestSlashNotTriggeredMidWord(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "a")
	m = typeText(m, "/x")
	if m.mode != modeInsert {
		t.Fatalf("mode = %v, a slash glued to a word must stay literal", m.mode)
	}
}

func TestFollowLinkOpensPickerForMultipleLinks(t *testing.T) {
	m := newTestModel(t)
	page := testPage()
	page.Blocks[1].Text = "see [[Projects]] and [[Ideas]]"
	mm, _ := m.Update(pageLoadedMsg{page: page, refresh: true})
	m = mm.(appModel)

	m = press(m, "j", "j", "f")
	if m.mode != modeLinkPicker {
		t.Fatalf("mode = %v, want link picker", m.mode)
	}
	if len(m.linkResults) != 2 || m.linkResults[0] != "Projects" || m.linkResults[1] != "Ideas" {
		t.Fatalf("links = %v", m.linkResults)
	}
	m = press(m, "down", "enter")
	if m.mode != modeNormal || !m.loading {
		t.Fatalf("picking a link must start a page load, mode=%v loading=%v", m.mode, m.loading)
	}
	if len(m.navStack) != 1 || m.navStack[0].uid != "02-21-2026" {
		t.Fatalf("nav stack = %+v", m.navStack)
	}
}

func TestFollowLinkSingleNavigates(t *testing.T) {
	m := newTestModel(t)
	page := testPage()
	page.Blocks[2].Text = "project notes in [[Projects]]"
	mm, _ := m.Update(pageLoadedMsg{page: page, refresh: true})
	m = mm.(appModel)

	m = press(m, "G", "f")
	if !m.loading {
		t.Fatal("single link must navigate without a picker")
	}
	if m.navIndex != 1 || len(m.navStack) != 1 {
		t.Fatalf("nav stack = %+v index = %d", m.navStack, m.navIndex)
	}
}

func TestFollowLinkWithoutLinksTogglesFold(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "f")
	if got := strings.Join(rowUIDs(m), " "); got != "a b c" {
		t.Fatalf("rows = %v, want the subtree folded", got)
	}
}

func TestNavBackForwardRestoresView(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "j")

	m = press(m, "]")
	next := model.Page{
		UID:   "02-22-2026",
		Title: "February 22nd, 2026",
		Date:  time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC),
		Blocks: []model.Block{
			{UID: "x", Text: "next day", Order: 0},
		},
	}
	mm, _ := m.Update(pageLoadedMsg{page: next})
	m = mm.(appModel)
	if m.pageUID != "02-22-2026" || m.cursor != 0 {
		t.Fatalf("page = %q cursor = %d", m.pageUID, m.cursor)
	}

	m = press(m, "H")
	if !m.restorePending {
		t.Fatal("back must schedule a cursor restore")
	}
	mm, _ = m.Update(pageLoadedMsg{page: testPage()})
	m = mm.(appModel)
	if m.pageUID != "02-21-2026" || m.cursor != 1 {
		t.Fatalf("after back: page = %q cursor = %d", m.pageUID, m.cursor)
	}

	m = press(m, "L")
	mm, _ = m.Update(pageLoadedMsg{page: next})
	m = mm.(appModel)
	if m.pageUID != "02-22-2026" || m.cursor != 0 {
		t.Fatalf("after forward: page = %q cursor = %d", m.pageUID, m.cursor)
	}
}

func TestScrollOffsetTracksCursor(t *testing.T) {
	m := newTestModel(t)
	mm, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 6})
	m = mm.(appModel)

	m = press(m, "G")
	if m.cursor != 3 || m.offset != 2 {
		t.Fatalf("cursor = %d offset = %d, window must follow the cursor down", m.cursor, m.offset)
	}
	if !strings.Contains(m.View(), "gamma") {
		t.Fatal("last block must be visible after scrolling")
	}
	m = press(m, "g")
	if m.offset != 0 {
		t.Fatalf("offset = %d, window must follow the cursor back up", m.offset)
	}
}
