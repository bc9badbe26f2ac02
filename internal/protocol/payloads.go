package protocol

import (
	"encoding/json"

	"github.com/alexanderramin/gridboard/internal/domain"
)

// Client → server payloads. Validate tags are enforced before any
// mutation touches the workspace.

type RequestFullState struct {
	GridID string `json:"gridId,omitempty"`
}

type SwitchGrid struct {
	GridID string `json:"gridId" validate:"required"`
}

// EntityPayload accompanies the <action>_<kind> family. Data carries the
// full entity document for create/update; delete needs only the id.
type EntityPayload struct {
	EntityID string          `json:"entityId" validate:"required"`
	GridID   string          `json:"gridId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type CreateOccurrence struct {
	TargetType string            `json:"targetType" validate:"required,oneof=grid panel container instance"`
	TargetID   string            `json:"targetId" validate:"required"`
	Parent     domain.ParentRef  `json:"parent" validate:"required"`
	Iteration  domain.Iteration  `json:"iteration"`
	Placement  *domain.Placement `json:"placement,omitempty"`
}

type UpdateOccurrence struct {
	OccurrenceID string                       `json:"occurrenceId" validate:"required"`
	Iteration    *domain.Iteration            `json:"iteration,omitempty"`
	Placement    *domain.Placement            `json:"placement,omitempty"`
	Fields       map[string]domain.FieldValue `json:"fields,omitempty"`
}

type DeleteOccurrence struct {
	OccurrenceID string `json:"occurrenceId" validate:"required"`
	// Cascade removes every occurrence of the same target and everything
	// beneath it, not just this placement.
	Cascade bool `json:"cascade,omitempty"`
}

type MoveOccurrence struct {
	OccurrenceID string           `json:"occurrenceId" validate:"required"`
	From         domain.ParentRef `json:"from" validate:"required"`
	To           domain.ParentRef `json:"to" validate:"required"`
}

type CopyOccurrence struct {
	OccurrenceID string           `json:"occurrenceId" validate:"required"`
	To           domain.ParentRef `json:"to" validate:"required"`
}

type ReorderOccurrences struct {
	Parent domain.ParentRef `json:"parent" validate:"required"`
	Order  []string         `json:"order" validate:"required,min=1"`
}

type SetMeasure struct {
	OccurrenceID string             `json:"occurrenceId" validate:"required"`
	FieldID      string             `json:"fieldId" validate:"required"`
	Value        *domain.FieldValue `json:"value,omitempty"`
	Flow         domain.Flow        `json:"flow,omitempty" validate:"omitempty,oneof=in out"`
}

type EditDoc struct {
	OccurrenceID string          `json:"occurrenceId" validate:"required"`
	FieldID      string          `json:"fieldId" validate:"required"`
	Steps        json.RawMessage `json:"steps,omitempty"`
	Content      json.RawMessage `json:"content" validate:"required"`
}

type GetUndoState struct {
	GridID string `json:"gridId" validate:"required"`
}

type UndoTransaction struct {
	TransactionID string `json:"transactionId" validate:"required"`
	GridID        string `json:"gridId" validate:"required"`
}

type RedoTransaction struct {
	TransactionID string `json:"transactionId" validate:"required"`
	GridID        string `json:"gridId" validate:"required"`
}

type GetTransactions struct {
	GridID        string `json:"gridId" validate:"required"`
	IncludeUndone bool   `json:"includeUndone,omitempty"`
}

type GetDerivedValue struct {
	FieldID string `json:"fieldId" validate:"required"`
	GridID  string `json:"gridId" validate:"required"`
	Period  string `json:"period" validate:"required"`
}
