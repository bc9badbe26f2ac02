package client

import (
	"encoding/json"
	"sort"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/protocol"
)

// board is the client-side mirror of one grid, maintained by applying
// the full_state snapshot and subsequent broadcast deltas.
type board struct {
	gridID      string
	grid        *domain.Grid
	containers  map[string]*domain.Container
	instances   map[string]*domain.Instance
	occurrences map[string]*domain.Occurrence
	lists       map[domain.ParentRef][]string

	// transaction ids in arrival order, newest last; fuel for undo.
	txHistory []string
}

func newBoard(gridID string) *board {
	return &board{
		gridID:      gridID,
		containers:  make(map[string]*domain.Container),
		instances:   make(map[string]*domain.Instance),
		occurrences: make(map[string]*domain.Occurrence),
		lists:       make(map[domain.ParentRef][]string),
	}
}

func (b *board) applyFullState(st protocol.FullState) {
	// The server resolves which grid the request landed on, creating a
	// fresh one when we had none to name.
	if b.gridID == "" {
		b.gridID = st.GridID
	}
	if st.Grid != nil && st.Grid.ID == b.gridID {
		b.grid = st.Grid
	}
	for _, g := range st.Grids {
		if b.gridID == "" {
			b.gridID = g.ID
		}
		if g.ID == b.gridID {
			b.grid = g
		}
	}
	for _, c := range st.Containers {
		if c.GridID == b.gridID {
			b.containers[c.ID] = c
		}
	}
	for _, in := range st.Instances {
		if in.GridID == b.gridID {
			b.instances[in.ID] = in
		}
	}
	for _, o := range st.Occurrences {
		b.occurrences[o.ID] = o
	}
	for _, l := range st.Lists {
		b.lists[l.Parent] = l.Order
	}
}

// apply folds one server envelope into the board. Unknown or unrelated
// message types are ignored; the next full_state heals any drift.
func (b *board) apply(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeFullState:
		var st protocol.FullState
		if env.Decode(&st) == nil {
			b.applyFullState(st)
		}

	case protocol.TypeOccurrenceCreated, protocol.TypeOccurrenceCopied:
		var ev protocol.OccurrenceEvent
		if env.Decode(&ev) != nil || ev.Occurrence == nil {
			return
		}
		b.occurrences[ev.Occurrence.ID] = ev.Occurrence
		if ev.To != nil {
			b.lists[*ev.To] = appendUnique(b.lists[*ev.To], ev.Occurrence.ID)
		}
		b.remember(ev.TransactionID)

	case protocol.TypeOccurrenceDeleted:
		var ev protocol.OccurrenceEvent
		if env.Decode(&ev) != nil {
			return
		}
		if o, ok := b.occurrences[ev.OccurrenceID]; ok {
			b.lists[o.Parent] = removeID(b.lists[o.Parent], o.ID)
			delete(b.occurrences, o.ID)
		}
		b.remember(ev.TransactionID)

	case protocol.TypeOccurrenceMoved:
		var ev protocol.OccurrenceEvent
		if env.Decode(&ev) != nil || ev.From == nil || ev.To == nil {
			return
		}
		b.lists[*ev.From] = removeID(b.lists[*ev.From], ev.OccurrenceID)
		b.lists[*ev.To] = appendUnique(b.lists[*ev.To], ev.OccurrenceID)
		if o, ok := b.occurrences[ev.OccurrenceID]; ok {
			o.Parent = *ev.To
		}
		b.remember(ev.TransactionID)

	case protocol.TypeOccurrencesReorder:
		var ev protocol.OccurrenceEvent
		if env.Decode(&ev) != nil || ev.To == nil {
			return
		}
		b.lists[*ev.To] = ev.Order
		b.remember(ev.TransactionID)

	case protocol.TypeMeasureSet:
		var ev protocol.MeasureEvent
		if env.Decode(&ev) != nil {
			return
		}
		if o, ok := b.occurrences[ev.OccurrenceID]; ok {
			if o.Fields == nil {
				o.Fields = make(map[string]domain.FieldValue)
			}
			if ev.Value == nil {
				delete(o.Fields, ev.FieldID)
			} else {
				o.Fields[ev.FieldID] = *ev.Value
			}
		}
		b.remember(ev.TransactionID)

	case "container_created", "container_updated":
		var ev protocol.EntityEvent
		if env.Decode(&ev) != nil {
			return
		}
		c := &domain.Container{}
		if json.Unmarshal(ev.Data, c) == nil && c.GridID == b.gridID {
			b.containers[c.ID] = c
		}
		b.remember(ev.TransactionID)

	case "instance_created", "instance_updated":
		var ev protocol.EntityEvent
		if env.Decode(&ev) != nil {
			return
		}
		in := &domain.Instance{}
		if json.Unmarshal(ev.Data, in) == nil && in.GridID == b.gridID {
			b.instances[in.ID] = in
		}
		b.remember(ev.TransactionID)

	case protocol.TypeTransactionUndone, protocol.TypeTransactionRedone:
		// Another connection unwound history; replaying inverse ops is
		// more fragile than asking for truth.
	}
}

func (b *board) remember(txID string) {
	if txID != "" {
		b.txHistory = append(b.txHistory, txID)
	}
}

// lastTx pops the most recent transaction id, for the undo key.
func (b *board) lastTx() string {
	if len(b.txHistory) == 0 {
		return ""
	}
	id := b.txHistory[len(b.txHistory)-1]
	b.txHistory = b.txHistory[:len(b.txHistory)-1]
	return id
}

// sortedContainers returns the grid's containers in display-name order.
func (b *board) sortedContainers() []*domain.Container {
	out := make([]*domain.Container, 0, len(b.containers))
	for _, c := range b.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// itemsIn resolves the ordered instance names under a container.
func (b *board) itemsIn(c *domain.Container) []*domain.Instance {
	ref := c.Ref()
	var out []*domain.Instance
	for _, id := range b.lists[ref] {
		o, ok := b.occurrences[id]
		if !ok {
			continue
		}
		if in, ok := b.instances[o.TargetID]; ok {
			out = append(out, in)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
