package api

import (
	"fmt"
	"time"
)

// DailyNoteUID returns the canonical uid of the daily page for a date,
// which the backend derives from the date itself.
func DailyNoteUID(t time.Time) string {
	return fmt.Sprintf("%02d-%02d-%d", int(t.Month()), t.Day(), t.Year())
}

// DailyNoteTitle formats the display title of a daily page, with the
// ordinal day suffix the backend expects ("August 31st, 2026").
func DailyNoteTitle(t time.Time) string {
	day := t.Day()
	suffix := "th"
	switch {
	case day%100 >= 11 && day%100 <= 13:
	case day%10 == 1:
		suffix = "st"
	case day%10 == 2:
		suffix = "nd"
	case day%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%s %d%s, %d", t.Month().String(), day, suffix, t.Year())
}

// pageSelector pulls a page title plus its full block tree.
const pageSelector = "[:node/title :block/uid {:block/children [:block/uid :block/string :block/order :block/open {:block/children ...}]}]"

// blockStringSelector pulls just a block's text, for resolving refs.
const blockStringSelector = "[:block/string]"

func uidEID(uid string) string {
	return fmt.Sprintf("[:block/uid %q]", uid)
}

// queryPageByTitle finds a page uid by its exact title.
const queryPageByTitle = "[:find ?uid :in $ ?title :where [?e :node/title ?title] [?e :block/uid ?uid]]"
