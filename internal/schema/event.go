package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Entity names the record family an event mutates.
type Entity string

const (
	EntityTurma   Entity = "turma"
	EntityAluno   Entity = "aluno"
	EntityChamada Entity = "chamada"
)

// Op is the mutation an event describes.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is one entry of the append-only sync log.
// Payload is opaque JSON; its shape depends on Entity and Op.
type Event struct {
	ID      string          `json:"id"`
	Entity  Entity          `json:"entity"`
	Op      Op              `json:"op"`
	Payload json.RawMessage `json:"payload"`
	TS      Millis          `json:"ts"`
}

// NewEvent builds an event with a random id stamped at now.
func NewEvent(entity Entity, op Op, payload any, now Millis) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s %s payload: %w", entity, op, err)
	}
	return Event{
		ID:      uuid.NewString(),
		Entity:  entity,
		Op:      op,
		Payload: raw,
		TS:      now,
	}, nil
}

// Ref is the payload of delete events and the part of every payload the
// replay engine needs to route it. Both turmaId and turma_id are accepted.
type Ref struct {
	ID           string `json:"id"`
	TurmaID      string `json:"turmaId,omitempty"`
	TurmaIDSnake string `json:"turma_id,omitempty"`
}

// Turma returns the referenced turma id, preferring the camelCase key.
func (r Ref) Turma() string {
	if r.TurmaID != "" {
		return r.TurmaID
	}
	return r.TurmaIDSnake
}

// AlunoPayload is the create/update payload of aluno events.
type AlunoPayload struct {
	Aluno
	TurmaID string `json:"turmaId"`
}
