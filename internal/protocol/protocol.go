// Package protocol defines the websocket wire messages exchanged between
// the server and its clients. Every message is an envelope carrying a
// type tag, an optional origin connection id, and a JSON payload.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alexanderramin/gridboard/internal/domain"
)

type MessageType string

// Client → server.
const (
	TypeRequestFullState MessageType = "request_full_state"
	TypeSwitchGrid       MessageType = "switch_grid"

	// Entity lifecycle messages follow the pattern <action>_<kind>:
	// create_grid, update_panel, delete_container, ...
	TypeCreateOccurrence   MessageType = "create_occurrence"
	TypeUpdateOccurrence   MessageType = "update_occurrence"
	TypeDeleteOccurrence   MessageType = "delete_occurrence"
	TypeMoveOccurrence     MessageType = "move_occurrence"
	TypeCopyOccurrence     MessageType = "copy_occurrence"
	TypeReorderOccurrences MessageType = "reorder_occurrences"

	TypeSetMeasure MessageType = "set_measure"
	TypeEditDoc    MessageType = "edit_doc"

	TypeGetUndoState    MessageType = "get_undo_state"
	TypeUndoTransaction MessageType = "undo_transaction"
	TypeRedoTransaction MessageType = "redo_transaction"
	TypeGetTransactions MessageType = "get_transactions"
	TypeGetDerivedValue MessageType = "get_derived_value"
)

// Server → client.
const (
	TypeFullState          MessageType = "full_state"
	TypeOccurrenceCreated  MessageType = "occurrence_created"
	TypeOccurrenceUpdated  MessageType = "occurrence_updated"
	TypeOccurrenceDeleted  MessageType = "occurrence_deleted"
	TypeOccurrenceMoved    MessageType = "occurrence_moved"
	TypeOccurrenceCopied   MessageType = "occurrence_copied"
	TypeOccurrencesReorder MessageType = "occurrences_reordered"
	TypeMeasureSet         MessageType = "measure_set"
	TypeDocEdited          MessageType = "doc_edited"
	TypeUndoState          MessageType = "undo_state"
	TypeUndoResult         MessageType = "undo_result"
	TypeRedoResult         MessageType = "redo_result"
	TypeTransactions       MessageType = "transactions"
	TypeDerivedValue       MessageType = "derived_value"
	TypeTransactionUndone  MessageType = "transaction_undone"
	TypeTransactionRedone  MessageType = "transaction_redone"
	TypeServerError        MessageType = "server_error"
)

// Envelope is the wire form of every message. Origin identifies the
// connection a broadcast originated from so receivers that applied the
// change optimistically can drop the echo.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(t MessageType, origin string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	return Envelope{Type: t, Origin: origin, Payload: raw}, nil
}

// Decode unmarshals the payload into v and validates it. A decode or
// validation failure is a client error, tagged ErrValidation.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, v); err != nil {
			return fmt.Errorf("decoding %s payload: %w", e.Type, errors.Join(domain.ErrValidation, err))
		}
	}
	return Validate(v)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks payload struct tags before any mutation runs.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", errors.Join(domain.ErrValidation, err))
	}
	return nil
}

// EntityMessage splits an <action>_<kind> message type into its entity
// action and kind. Returns false for message types outside that family.
func EntityMessage(t MessageType) (domain.EntityAction, domain.EntityKind, bool) {
	action, kind, found := strings.Cut(string(t), "_")
	if !found || !domain.ValidEntityKinds[kind] {
		return "", "", false
	}
	switch action {
	case "create", "update", "delete":
		return domain.EntityAction(action), domain.EntityKind(kind), true
	default:
		return "", "", false
	}
}

// EntityEventType names the broadcast event for an entity mutation:
// grid_created, panel_updated, container_deleted, ...
func EntityEventType(action domain.EntityAction, kind domain.EntityKind) MessageType {
	suffix := map[domain.EntityAction]string{
		domain.EntityCreate: "created",
		domain.EntityUpdate: "updated",
		domain.EntityDelete: "deleted",
	}[action]
	return MessageType(string(kind) + "_" + suffix)
}
