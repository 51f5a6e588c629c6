package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/guieduc/guieduc/internal/schema"
)

// State is the in-memory form of the data blob. The maps are keyed by
// turma id.
type State struct {
	Turmas    []schema.Turma               `json:"turmas"`
	Alunos    map[string][]schema.Aluno    `json:"alunos"`
	Chamadas  map[string][]schema.Chamada  `json:"chamadas"`
	Conteudos map[string][]schema.Conteudo `json:"conteudos"`
}

// NewState returns an empty state.
func NewState() *State {
	st := &State{}
	st.normalize()
	return st
}

// DecodeState parses a data blob. An empty blob decodes to an empty state.
func DecodeState(raw string) (*State, error) {
	st := &State{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), st); err != nil {
			return nil, fmt.Errorf("failed to decode data blob: %w", err)
		}
	}
	st.normalize()
	return st, nil
}

// Encode serializes the state as a data blob.
func (st *State) Encode() (string, error) {
	st.normalize()
	data, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("failed to encode data blob: %w", err)
	}
	return string(data), nil
}

// normalize replaces nil collections so the blob always has every field.
func (st *State) normalize() {
	if st.Turmas == nil {
		st.Turmas = []schema.Turma{}
	}
	if st.Alunos == nil {
		st.Alunos = make(map[string][]schema.Aluno)
	}
	if st.Chamadas == nil {
		st.Chamadas = make(map[string][]schema.Chamada)
	}
	if st.Conteudos == nil {
		st.Conteudos = make(map[string][]schema.Conteudo)
	}
	for turmaID, list := range st.Chamadas {
		for i := range list {
			if list[i].Presencas == nil {
				list[i].Presencas = make(map[string]bool)
			}
			if list[i].TurmaID == "" {
				list[i].TurmaID = turmaID
			}
		}
	}
}

// TurmaIndex returns the position of the turma with id, or -1.
func (st *State) TurmaIndex(id string) int {
	return slices.IndexFunc(st.Turmas, func(t schema.Turma) bool { return t.ID == id })
}

// HasTurma reports whether the turma exists.
func (st *State) HasTurma(id string) bool {
	return st.TurmaIndex(id) >= 0
}

// AlunoIndex returns the position of the aluno under turmaID, or -1.
func (st *State) AlunoIndex(turmaID, id string) int {
	return slices.IndexFunc(st.Alunos[turmaID], func(a schema.Aluno) bool { return a.ID == id })
}

// ChamadaIndex returns the position of the chamada under turmaID, or -1.
func (st *State) ChamadaIndex(turmaID, id string) int {
	return slices.IndexFunc(st.Chamadas[turmaID], func(c schema.Chamada) bool { return c.ID == id })
}

// ConteudoIndex returns the position of the conteudo under turmaID, or -1.
func (st *State) ConteudoIndex(turmaID, id string) int {
	return slices.IndexFunc(st.Conteudos[turmaID], func(c schema.Conteudo) bool { return c.ID == id })
}

// RemoveTurma deletes the turma and everything scoped under it.
// Returns false when the turma did not exist and nothing was scoped under it.
func (st *State) RemoveTurma(id string) bool {
	changed := false
	if i := st.TurmaIndex(id); i >= 0 {
		st.Turmas = slices.Delete(st.Turmas, i, i+1)
		changed = true
	}
	if deleteKey(st.Alunos, id) {
		changed = true
	}
	if deleteKey(st.Chamadas, id) {
		changed = true
	}
	if deleteKey(st.Conteudos, id) {
		changed = true
	}
	return changed
}

// RemoveAluno deletes the aluno and strips it from every presencas map of
// the turma.
func (st *State) RemoveAluno(turmaID, id string) bool {
	changed := false
	if i := st.AlunoIndex(turmaID, id); i >= 0 {
		st.Alunos[turmaID] = slices.Delete(st.Alunos[turmaID], i, i+1)
		changed = true
	}
	for _, c := range st.Chamadas[turmaID] {
		if _, ok := c.Presencas[id]; ok {
			delete(c.Presencas, id)
			changed = true
		}
	}
	return changed
}

// RemoveChamada deletes the chamada by id.
func (st *State) RemoveChamada(turmaID, id string) bool {
	i := st.ChamadaIndex(turmaID, id)
	if i < 0 {
		return false
	}
	gone := st.Chamadas[turmaID][i].Numero
	list := slices.Delete(st.Chamadas[turmaID], i, i+1)
	// Later aulas move down one so the numbers stay 1..N.
	if gone > 0 {
		for j := range list {
			if list[j].Numero > gone {
				list[j].Numero--
			}
		}
	}
	st.Chamadas[turmaID] = list
	return true
}

// RemoveConteudo deletes the conteudo by id.
func (st *State) RemoveConteudo(turmaID, id string) bool {
	i := st.ConteudoIndex(turmaID, id)
	if i < 0 {
		return false
	}
	st.Conteudos[turmaID] = slices.Delete(st.Conteudos[turmaID], i, i+1)
	return true
}

func deleteKey[V any](m map[string]V, key string) bool {
	if _, ok := m[key]; !ok {
		return false
	}
	delete(m, key)
	return true
}
