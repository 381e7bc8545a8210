package api

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"rhizome/internal/model"
)

// Order is a block position inside its parent: either a numeric index or
// one of the backend's positional keywords ("first", "last").
type Order struct {
	index    int
	position string
}

func OrderIndex(i int) Order { return Order{index: i} }
func OrderLast() Order       { return Order{position: "last"} }
func OrderFirst() Order      { return Order{position: "first"} }

func (o Order) MarshalJSON() ([]byte, error) {
	if o.position != "" {
		return json.Marshal(o.position)
	}
	return []byte(strconv.Itoa(o.index)), nil
}

func (o *Order) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &o.position)
	}
	o.position = ""
	return json.Unmarshal(data, &o.index)
}

// Location addresses where a block lives or should be placed.
type Location struct {
	ParentUID string `json:"parent-uid"`
	Order     Order  `json:"order"`
}

// BlockPayload carries the block fields a write action needs. Only the
// relevant fields are set per action.
type BlockPayload struct {
	UID    string `json:"uid,omitempty"`
	String string `json:"string,omitempty"`
	Open   *bool  `json:"open,omitempty"`
}

// WriteAction is one mutation against the graph, tagged by action name.
type WriteAction struct {
	Action   string        `json:"action"`
	Location *Location     `json:"location,omitempty"`
	Block    *BlockPayload `json:"block,omitempty"`
}

func CreateBlock(parentUID string, order Order, uid, text string) WriteAction {
	return WriteAction{
		Action:   "create-block",
		Location: &Location{ParentUID: parentUID, Order: order},
		Block:    &BlockPayload{UID: uid, String: text},
	}
}

func UpdateBlock(uid, text string) WriteAction {
	return WriteAction{
		Action: "update-block",
		Block:  &BlockPayload{UID: uid, String: text},
	}
}

func DeleteBlock(uid string) WriteAction {
	return WriteAction{
		Action: "delete-block",
		Block:  &BlockPayload{UID: uid},
	}
}

func MoveBlock(uid, parentUID string, order Order) WriteAction {
	return WriteAction{
		Action:   "move-block",
		Location: &Location{ParentUID: parentUID, Order: order},
		Block:    &BlockPayload{UID: uid},
	}
}

// ParsePage converts a pull result into a Page. The backend keys block
// attributes with Datalog-style names and returns children unsorted;
// ordering is restored here.
func ParsePage(result map[string]any, uid string, date time.Time) model.Page {
	p := model.Page{UID: uid, Date: date}
	if t, ok := result[":node/title"].(string); ok {
		p.Title = t
	}
	if u, ok := result[":block/uid"].(string); ok && u != "" {
		p.UID = u
	}
	if kids, ok := result[":block/children"].([]any); ok {
		for _, k := range kids {
			if m, ok := k.(map[string]any); ok {
				p.Blocks = append(p.Blocks, parseBlock(m))
			}
		}
		sort.SliceStable(p.Blocks, func(i, j int) bool { return p.Blocks[i].Order < p.Blocks[j].Order })
	}
	return p
}

func parseBlock(m map[string]any) model.Block {
	b := model.Block{Collapsed: false}
	if u, ok := m[":block/uid"].(string); ok {
		b.UID = u
	}
	if s, ok := m[":block/string"].(string); ok {
		b.Text = s
	}
	if o, ok := m[":block/order"].(float64); ok {
		b.Order = int(o)
	}
	if open, ok := m[":block/open"].(bool); ok {
		b.Collapsed = !open
	}
	if kids, ok := m[":block/children"].([]any); ok {
		for _, k := range kids {
			if cm, ok := k.(map[string]any); ok {
				b.Children = append(b.Children, parseBlock(cm))
			}
		}
		sort.SliceStable(b.Children, func(i, j int) bool { return b.Children[i].Order < b.Children[j].Order })
	}
	return b
}
