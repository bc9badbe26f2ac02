package protocol

import (
	"encoding/json"

	"github.com/alexanderramin/gridboard/internal/domain"
)

// Server → client payloads.

// ParentList pairs a parent scope with its ordered occurrence-id list.
type ParentList struct {
	Parent domain.ParentRef `json:"parent"`
	Order  []string         `json:"order"`
}

// FullState is the atomic board snapshot. It is assembled in one pass
// under the workspace lock and sent as a single message, so a client
// never observes a torn cross-entity state.
type FullState struct {
	// GridID is the grid the request resolved to; Grid is its document.
	// A missing or unknown requested id resolves to a freshly created
	// empty grid.
	GridID      string               `json:"gridId,omitempty"`
	Grid        *domain.Grid         `json:"grid,omitempty"`
	Grids       []*domain.Grid       `json:"grids"`
	Panels      []*domain.Panel      `json:"panels"`
	Containers  []*domain.Container  `json:"containers"`
	Instances   []*domain.Instance   `json:"instances"`
	Fields      []*domain.Field      `json:"fields"`
	Occurrences []*domain.Occurrence `json:"occurrences"`
	Lists       []ParentList         `json:"lists"`
}

// EntityEvent is the broadcast body of the <kind>_<created|updated|
// deleted> family.
type EntityEvent struct {
	EntityType    domain.EntityKind `json:"entityType"`
	EntityID      string            `json:"entityId"`
	Data          json.RawMessage   `json:"data,omitempty"`
	TransactionID string            `json:"transactionId,omitempty"`
}

type OccurrenceEvent struct {
	Occurrence    *domain.Occurrence `json:"occurrence,omitempty"`
	OccurrenceID  string             `json:"occurrenceId"`
	From          *domain.ParentRef  `json:"from,omitempty"`
	To            *domain.ParentRef  `json:"to,omitempty"`
	Order         []string           `json:"order,omitempty"`
	TransactionID string             `json:"transactionId,omitempty"`
}

type MeasureEvent struct {
	OccurrenceID  string             `json:"occurrenceId"`
	FieldID       string             `json:"fieldId"`
	Value         *domain.FieldValue `json:"value,omitempty"`
	TransactionID string             `json:"transactionId,omitempty"`
}

type DocEvent struct {
	OccurrenceID  string          `json:"occurrenceId"`
	FieldID       string          `json:"fieldId"`
	Steps         json.RawMessage `json:"steps,omitempty"`
	Content       json.RawMessage `json:"content,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
}

// UndoResult reports an undo/redo attempt back to its originator.
// ReversedOps carries the applied inverse operations so the client can
// animate position changes instead of snapping.
type UndoResult struct {
	Success       bool              `json:"success"`
	TransactionID string            `json:"transactionId"`
	ReversedOps   domain.Operations `json:"reversedOps,omitempty"`
	Error         string            `json:"error,omitempty"`
}

type Transactions struct {
	GridID       string                `json:"gridId"`
	Transactions []*domain.Transaction `json:"transactions"`
}

type DerivedValue struct {
	FieldID string `json:"fieldId"`
	Period  string `json:"period"`
	Value   any    `json:"value"`
}

// TransactionEvent is broadcast to the user's other connections when a
// transaction is undone or redone elsewhere.
type TransactionEvent struct {
	TransactionID string            `json:"transactionId"`
	GridID        string            `json:"gridId"`
	Operations    domain.Operations `json:"operations,omitempty"`
}

type ServerError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
