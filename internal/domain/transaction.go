package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OpKind string

const (
	OpOccurrenceList OpKind = "occurrence_list"
	OpMeasure        OpKind = "measure"
	OpEntity         OpKind = "entity"
	OpDocEdit        OpKind = "doc_edit"
)

// Operation is the closed sum of reversible operation kinds. Adding a
// kind is a compile-time decision: every switch over operations must be
// exhaustive.
type Operation interface {
	Kind() OpKind
	isOperation()
}

// OccurrenceListOp mutates a parent's ordered occurrence-id list:
// add/remove a placement, move between parents, copy, reorder within one
// parent, or create/delete the occurrence record itself via snapshot.
type OccurrenceListOp struct {
	Action       ListAction  `json:"action"`
	OccurrenceID string      `json:"occurrenceId"`
	From         *ParentRef  `json:"from,omitempty"`
	To           *ParentRef  `json:"to,omitempty"`
	Index        int         `json:"index,omitempty"`
	PrevIndex    int         `json:"prevIndex,omitempty"`
	Order        []string    `json:"order,omitempty"`
	PrevOrder    []string    `json:"prevOrder,omitempty"`
	Snapshot     *Occurrence `json:"snapshot,omitempty"`
}

// MeasureOp records one field value change on an occurrence snapshot,
// with the previous value for inversion and a flow tag for aggregation.
type MeasureOp struct {
	OccurrenceID  string      `json:"occurrenceId"`
	FieldID       string      `json:"fieldId"`
	Value         *FieldValue `json:"value,omitempty"`
	PreviousValue *FieldValue `json:"previousValue,omitempty"`
	Flow          Flow        `json:"flow,omitempty"`
}

// EntityOp records a create/update/delete of a hierarchy entity, carrying
// both sides of the change.
type EntityOp struct {
	Action       EntityAction    `json:"action"`
	EntityType   EntityKind      `json:"entityType"`
	EntityID     string          `json:"entityId"`
	Data         json.RawMessage `json:"data,omitempty"`
	PreviousData json.RawMessage `json:"previousData,omitempty"`
}

// DocEditOp records a rich-text edit on a document field. Steps are
// opaque to the engine; undo restores PreviousContent wholesale.
type DocEditOp struct {
	OccurrenceID    string          `json:"occurrenceId"`
	FieldID         string          `json:"fieldId"`
	Steps           json.RawMessage `json:"steps,omitempty"`
	PreviousContent json.RawMessage `json:"previousContent,omitempty"`
	Content         json.RawMessage `json:"content,omitempty"`
}

func (*OccurrenceListOp) Kind() OpKind { return OpOccurrenceList }
func (*MeasureOp) Kind() OpKind        { return OpMeasure }
func (*EntityOp) Kind() OpKind         { return OpEntity }
func (*DocEditOp) Kind() OpKind        { return OpDocEdit }

func (*OccurrenceListOp) isOperation() {}
func (*MeasureOp) isOperation()        {}
func (*EntityOp) isOperation()         {}
func (*DocEditOp) isOperation()        {}

// Operations is a JSON-taggable slice of the operation sum. The wire and
// storage form of each element is {"type": <kind>, "op": {...}}.
type Operations []Operation

type opEnvelope struct {
	Type OpKind          `json:"type"`
	Op   json.RawMessage `json:"op"`
}

func (ops Operations) MarshalJSON() ([]byte, error) {
	out := make([]opEnvelope, 0, len(ops))
	for _, op := range ops {
		raw, err := json.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("encoding %s operation: %w", op.Kind(), err)
		}
		out = append(out, opEnvelope{Type: op.Kind(), Op: raw})
	}
	return json.Marshal(out)
}

func (ops *Operations) UnmarshalJSON(data []byte) error {
	var envs []opEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return fmt.Errorf("decoding operation list: %w", err)
	}
	decoded := make(Operations, 0, len(envs))
	for _, env := range envs {
		var op Operation
		switch env.Type {
		case OpOccurrenceList:
			op = &OccurrenceListOp{}
		case OpMeasure:
			op = &MeasureOp{}
		case OpEntity:
			op = &EntityOp{}
		case OpDocEdit:
			op = &DocEditOp{}
		default:
			return fmt.Errorf("decoding operation: unknown kind %q", env.Type)
		}
		if err := json.Unmarshal(env.Op, op); err != nil {
			return fmt.Errorf("decoding %s operation: %w", env.Type, err)
		}
		decoded = append(decoded, op)
	}
	*ops = decoded
	return nil
}

// Transaction is an ordered, reversible unit of operations. Seq is
// monotonically increasing per grid and is the ground truth for which
// transaction is next to undo or redo.
type Transaction struct {
	ID         string     `json:"id"`
	GridID     string     `json:"gridId"`
	UserID     string     `json:"userId,omitempty"`
	Seq        int        `json:"sequence"`
	State      TxState    `json:"state"`
	Operations Operations `json:"operations"`
	CreatedAt  time.Time  `json:"createdAt"`
	UndoneAt   *time.Time `json:"undoneAt,omitempty"`
	UndoneBy   string     `json:"undoneBy,omitempty"`
}

// Undoable reports whether the transaction is a candidate for undo.
// A redone transaction behaves like an applied one for the next undo.
func (t *Transaction) Undoable() bool {
	return t.State == TxApplied || t.State == TxRedone
}
