// Package replay rebuilds local store state from a sequence of sync events.
//
// Apply is a pure reducer over store.State: it never fails, and events it
// cannot use (unknown entity or op, payloads that do not decode, aluno or
// chamada events without a turma) are reported as not applied and leave the
// state untouched. Every recognised op is an upsert or a delete by id, so
// applying the same sequence again yields the same state.
package replay

import (
	"encoding/json"

	"github.com/guieduc/guieduc/internal/schema"
	"github.com/guieduc/guieduc/internal/store"
)

// Apply reduces one event into st and reports whether it was applied.
func Apply(st *store.State, ev schema.Event) bool {
	var ref schema.Ref
	if err := json.Unmarshal(ev.Payload, &ref); err != nil || ref.ID == "" {
		return false
	}

	switch ev.Entity {
	case schema.EntityTurma:
		return applyTurma(st, ev.Op, ref, ev.Payload)
	case schema.EntityAluno:
		return applyAluno(st, ev.Op, ref, ev.Payload)
	case schema.EntityChamada:
		return applyChamada(st, ev.Op, ref, ev.Payload)
	}
	return false
}

func isUpsert(op schema.Op) bool {
	return op == schema.OpCreate || op == schema.OpUpdate
}

func applyTurma(st *store.State, op schema.Op, ref schema.Ref, payload json.RawMessage) bool {
	switch {
	case isUpsert(op):
		i := st.TurmaIndex(ref.ID)
		var t schema.Turma
		if i >= 0 {
			t = st.Turmas[i]
		}
		if json.Unmarshal(payload, &t) != nil {
			return false
		}
		t.ID = ref.ID
		if i >= 0 {
			st.Turmas[i] = t
		} else {
			st.Turmas = append(st.Turmas, t)
		}
		return true

	case op == schema.OpDelete:
		// Conteudos go too, the same cascade a local delete does.
		st.RemoveTurma(ref.ID)
		return true
	}
	return false
}

func applyAluno(st *store.State, op schema.Op, ref schema.Ref, payload json.RawMessage) bool {
	turmaID := ref.Turma()
	if turmaID == "" {
		return false
	}

	switch {
	case isUpsert(op):
		i := st.AlunoIndex(turmaID, ref.ID)
		var a schema.Aluno
		if i >= 0 {
			a = st.Alunos[turmaID][i]
		}
		if json.Unmarshal(payload, &a) != nil {
			return false
		}
		a.ID = ref.ID
		if i >= 0 {
			st.Alunos[turmaID][i] = a
		} else {
			st.Alunos[turmaID] = append(st.Alunos[turmaID], a)
		}
		return true

	case op == schema.OpDelete:
		st.RemoveAluno(turmaID, ref.ID)
		return true
	}
	return false
}

func applyChamada(st *store.State, op schema.Op, ref schema.Ref, payload json.RawMessage) bool {
	turmaID := ref.Turma()
	if turmaID == "" {
		return false
	}

	switch {
	case isUpsert(op):
		i := st.ChamadaIndex(turmaID, ref.ID)
		var c schema.Chamada
		if i >= 0 {
			c = st.Chamadas[turmaID][i]
		}
		// A presencas object in the payload replaces the map instead of
		// being merged key by key into it.
		var shape struct {
			Presencas json.RawMessage `json:"presencas"`
		}
		if json.Unmarshal(payload, &shape) == nil && shape.Presencas != nil {
			c.Presencas = nil
		}
		if json.Unmarshal(payload, &c) != nil {
			return false
		}
		c.ID = ref.ID
		c.TurmaID = turmaID
		if c.Presencas == nil {
			c.Presencas = make(map[string]bool)
		}
		if i >= 0 {
			st.Chamadas[turmaID][i] = c
		} else {
			st.Chamadas[turmaID] = append(st.Chamadas[turmaID], c)
		}
		return true

	case op == schema.OpDelete:
		st.RemoveChamada(turmaID, ref.ID)
		return true
	}
	return false
}
