package model

import "time"

// Block is one node of the outline tree. Children are owned by the parent and
// are kept sorted by Order (ties broken by insertion sequence).
type Block struct {
	UID       string  `json:"uid"`
	Text      string  `json:"text"`
	Order     int     `json:"order"`
	Children  []Block `json:"children,omitempty"`
	Collapsed bool    `json:"collapsed"`

	// Refs is derived from Text and never authoritative; it is recomputed
	// whenever Text changes.
	Refs []string `json:"refs,omitempty"`

	// Dirty marks a local mutation the backend has not confirmed yet.
	Dirty bool `json:"-"`
}

// Page is a root container of blocks, identified by title or (for daily
// notes) by date. Date is zero for named pages.
type Page struct {
	UID    string    `json:"uid"`
	Title  string    `json:"title"`
	Date   time.Time `json:"date,omitempty"`
	Blocks []Block   `json:"blocks,omitempty"`
}

// IsDaily reports whether the page is a dated daily-note page.
func (p Page) IsDaily() bool { return !p.Date.IsZero() }

// Candidate is a search / autocomplete result: a block uid plus its text.
type Candidate struct {
	UID  string
	Text string
}
