package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"rhizome/internal/api"
	"rhizome/internal/config"
	"rhizome/internal/editbuf"
	"rhizome/internal/history"
	"rhizome/internal/markdown"
	"rhizome/internal/model"
	"rhizome/internal/slash"
	"rhizome/internal/store"
	"rhizome/internal/syncer"
	"rhizome/internal/tree"
)

const (
	autocompleteLimit = 20
	searchLimit       = 50
)

// puller is the slice of the API client the model reads pages through.
type puller interface {
	PullPage(ctx context.Context, uid string, date time.Time) (model.Page, error)
	PullBlockText(ctx context.Context, uid string) (string, error)
	PageUIDByTitle(ctx context.Context, title string) (string, error)
}

type appModel struct {
	ctx    context.Context
	cfg    config.Config
	log    *slog.Logger
	client puller
	eng    *syncer.Engine
	state  *store.State

	// startPage, when set, overrides the last-visited page on startup.
	// It may be a page title or a uid.
	startPage string

	tree  *tree.Tree
	hist  *history.History
	apply *applier

	pageUID  string
	pageDate time.Time
	rows     []tree.Row
	cursor   int
	offset   int

	mode    mode
	session *editbuf.Session
	// createParent is set while the session edits a placeholder block
	// that has not been committed (and so not synced) yet.
	createParent string
	createOrder  int
	pendingD     bool

	searchInput   textinput.Model
	searchResults []model.Candidate
	searchSel     int

	acResults []model.Candidate
	acSel     int

	// slashPos is the rune offset of the "/" that opened the palette.
	slashPos     int
	slashResults []slash.Command
	slashSel     int

	linkResults []string
	linkSel     int

	// navStack is browser-style page history; navIndex points one past
	// the last restored entry while the current view is unsaved.
	navStack       []navEntry
	navIndex       int
	restoreCursor  int
	restorePending bool

	// refCache resolves ((uid)) tokens to text for display.
	refCache   map[string]string
	refPending map[string]bool

	spin    spinner.Model
	loading bool

	failed *syncer.Result

	status    string
	statusSeq int
	err       error

	width, height  int
	seenWindowSize bool
	showHelp       bool
	helpCache      string
}

func newAppModel(ctx context.Context, cfg config.Config, log *slog.Logger, client puller, eng *syncer.Engine, state *store.State) appModel {
	tr := tree.New()
	ti := textinput.New()
	ti.Placeholder = "search blocks"
	ti.CharLimit = 200
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return appModel{
		ctx:         ctx,
		cfg:         cfg,
		log:         log,
		client:      client,
		eng:         eng,
		state:       state,
		tree:        tr,
		hist:        history.New(),
		apply:       newApplier(tr, eng, state, log),
		pageDate:    time.Now(),
		searchInput: ti,
		refCache:    make(map[string]string),
		refPending:  make(map[string]bool),
		spin:        sp,
		loading:     true,
	}
}

func (m appModel) Init() tea.Cmd {
	load := m.loadPage(m.initialRequest(), false)
	if m.startPage != "" {
		load = m.loadNamed(m.startPage)
	}
	return tea.Batch(
		m.spin.Tick,
		load,
		m.waitSyncResult(),
		m.refreshTick(),
	)
}

func (m appModel) initialRequest() loadRequest {
	req := loadRequest{uid: api.DailyNoteUID(m.pageDate), date: m.pageDate}
	if m.state != nil {
		if last, err := m.state.LastPage(m.ctx); err == nil && last != "" {
			req.uid = last
			if d, err := time.Parse("01-02-2006", last); err == nil {
				req.date = d
			}
		}
	}
	return req
}

// loadNamed resolves a page by title first, falling back to treating the
// name as a uid, then pulls it.
func (m appModel) loadNamed(name string) tea.Cmd {
	return func() tea.Msg {
		uid, err := m.client.PageUIDByTitle(m.ctx, name)
		switch {
		case err == nil && uid != "":
		case errors.Is(err, api.ErrNotFound):
			uid = name
		case err != nil:
			return pageLoadedMsg{err: err}
		}
		date := m.pageDate
		if d, err := time.Parse("01-02-2006", uid); err == nil {
			date = d
		}
		return m.loadPage(loadRequest{uid: uid, date: date}, false)()
	}
}

func (m appModel) loadPage(req loadRequest, refresh bool) tea.Cmd {
	return func() tea.Msg {
		page, err := m.client.PullPage(m.ctx, req.uid, req.date)
		if err != nil {
			return pageLoadedMsg{refresh: refresh, err: err}
		}
		if page.Title == "" && page.IsDaily() {
			page.Title = api.DailyNoteTitle(req.date)
		}
		return pageLoadedMsg{page: page, refresh: refresh}
	}
}

func (m appModel) waitSyncResult() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-m.eng.Results()
		if !ok {
			return nil
		}
		return syncResultMsg{result: r}
	}
}

func (m appModel) refreshTick() tea.Cmd {
	return tea.Tick(m.cfg.Sync.RefreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m appModel) resolveRef(uid string) tea.Cmd {
	return func() tea.Msg {
		text, err := m.client.PullBlockText(m.ctx, uid)
		return blockTextMsg{uid: uid, text: text, err: err}
	}
}

// refreshRows recomputes the visible outline and clamps the cursor.
func (m *appModel) refreshRows() {
	m.rows = m.tree.FlattenVisible(m.pageUID)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampScroll()
}

// bodyHeight is the number of outline rows that fit between the header
// and the status line.
func (m appModel) bodyHeight() int {
	body := m.height - 4
	if body < 1 {
		body = 1
	}
	return body
}

// clampScroll slides the scroll offset so the cursor stays inside the
// rendered window. Update owns the offset; View only reads it.
func (m *appModel) clampScroll() {
	body := m.bodyHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+body {
		m.offset = m.cursor - body + 1
	}
	if last := len(m.rows) - body; m.offset > last {
		m.offset = last
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// missingRefCmds queues lookups for block refs the cache cannot resolve.
func (m *appModel) missingRefCmds() []tea.Cmd {
	var cmds []tea.Cmd
	for _, r := range m.rows {
		for _, uid := range markdown.BlockRefs(r.Block.Text) {
			if _, ok := m.refCache[uid]; ok || m.refPending[uid] {
				continue
			}
			if _, ok := m.tree.Block(uid); ok {
				continue
			}
			m.refPending[uid] = true
			cmds = append(cmds, m.resolveRef(uid))
		}
	}
	return cmds
}

// resolveDisplay maps a block uid to text for rendering ((uid)) tokens,
// preferring the live tree over the cache.
func (m *appModel) resolveDisplay(uid string) (string, bool) {
	if b, ok := m.tree.Block(uid); ok {
		return b.Text, true
	}
	if text, ok := m.refCache[uid]; ok {
		return text, true
	}
	return "", false
}

func newTempUID() string {
	return syncer.TempPrefix + uuid.NewString()[:8]
}

func (m *appModel) flash(s string) tea.Cmd {
	m.status = s
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return statusClearMsg{seq: seq}
	})
}
