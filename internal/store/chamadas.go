package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/guieduc/guieduc/internal/schema"
)

// ListChamadas returns the chamadas of a turma by creation time.
//
// Chamadas stored without an aula number get one here, and the numbers are
// written back before returning. Existing numbers are never changed.
func (s *Store) ListChamadas(ctx context.Context, turmaID string) ([]schema.Chamada, error) {
	var out []schema.Chamada
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		list := st.Chamadas[turmaID]
		sortChamadas(list)
		changed := backfillNumeros(list)
		out = cloneChamadas(list)
		return changed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chamadas: %w", err)
	}
	return out, nil
}

// GetChamada returns the chamada with id under turmaID.
func (s *Store) GetChamada(ctx context.Context, turmaID, id string) (schema.Chamada, bool, error) {
	st, _, err := s.Load(ctx)
	if err != nil {
		return schema.Chamada{}, false, err
	}
	i := st.ChamadaIndex(turmaID, id)
	if i < 0 {
		return schema.Chamada{}, false, nil
	}
	return cloneChamada(st.Chamadas[turmaID][i]), true, nil
}

// AddChamada creates a chamada taken at the given time (zero means now).
// It gets the next aula number of the turma; an empty name becomes
// "Aula N".
func (s *Store) AddChamada(ctx context.Context, turmaID, nome string, at schema.Millis) (schema.Chamada, error) {
	nome = strings.TrimSpace(nome)
	if err := schema.Validate(schema.ChamadaInput{TurmaID: turmaID, Nome: nome}); err != nil {
		return schema.Chamada{}, err
	}

	now := s.now()
	if at.IsZero() {
		at = now
	}
	id := s.newID()

	var out schema.Chamada
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		if !st.HasTurma(turmaID) {
			return false, errTurmaNotFound()
		}
		list := st.Chamadas[turmaID]
		sortChamadas(list)
		backfillNumeros(list)

		out = schema.Chamada{
			ID:        id,
			TurmaID:   turmaID,
			Nome:      nome,
			Numero:    maxNumero(list) + 1,
			Presencas: make(map[string]bool),
			CreatedAt: at,
			UpdatedAt: now,
		}
		if out.Nome == "" {
			out.Nome = fmt.Sprintf("Aula %d", out.Numero)
		}
		st.Chamadas[turmaID] = append(list, out)
		return true, nil
	})
	if err != nil {
		return schema.Chamada{}, fmt.Errorf("failed to add chamada: %w", err)
	}
	return cloneChamada(out), nil
}

// UpdateChamada merges c into the stored chamada with the same id. An empty
// Nome, nil Presencas or zero Numero keep the stored value. A missing
// chamada is created. A Numero held by another chamada of the turma, or
// beyond the number of chamadas, is rejected.
func (s *Store) UpdateChamada(ctx context.Context, c schema.Chamada) (schema.Chamada, error) {
	c.Nome = strings.TrimSpace(c.Nome)
	if err := schema.Validate(schema.ChamadaInput{TurmaID: c.TurmaID, Nome: c.Nome}); err != nil {
		return schema.Chamada{}, err
	}
	if c.ID == "" {
		return schema.Chamada{}, schema.NewFieldError("id", "id é obrigatório")
	}
	if c.Numero < 0 {
		return schema.Chamada{}, schema.NewFieldError("numero", "numero deve ser maior que 0")
	}

	now := s.now()
	var out schema.Chamada
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		if !st.HasTurma(c.TurmaID) {
			return false, errTurmaNotFound()
		}
		if i := st.ChamadaIndex(c.TurmaID, c.ID); i >= 0 {
			cur := &st.Chamadas[c.TurmaID][i]
			if c.Nome != "" {
				cur.Nome = c.Nome
			}
			if c.Presencas != nil {
				cur.Presencas = maps.Clone(c.Presencas)
			}
			if c.Numero > 0 && c.Numero != cur.Numero {
				if err := checkNumero(st.Chamadas[c.TurmaID], c.ID, c.Numero, len(st.Chamadas[c.TurmaID])); err != nil {
					return false, err
				}
				cur.Numero = c.Numero
			}
			cur.UpdatedAt = now
			out = cloneChamada(*cur)
			return true, nil
		}

		list := st.Chamadas[c.TurmaID]
		sortChamadas(list)
		backfillNumeros(list)
		created := cloneChamada(c)
		if created.Presencas == nil {
			created.Presencas = make(map[string]bool)
		}
		if created.CreatedAt.IsZero() {
			created.CreatedAt = now
		}
		if created.Numero == 0 {
			created.Numero = maxNumero(list) + 1
		} else if err := checkNumero(list, created.ID, created.Numero, len(list)+1); err != nil {
			return false, err
		}
		if created.Nome == "" {
			created.Nome = fmt.Sprintf("Aula %d", created.Numero)
		}
		created.UpdatedAt = now
		st.Chamadas[c.TurmaID] = append(list, created)
		out = cloneChamada(created)
		return true, nil
	})
	if err != nil {
		return schema.Chamada{}, fmt.Errorf("failed to update chamada: %w", err)
	}
	return out, nil
}

// SetPresenca marks an aluno present or absent. ok is false when the
// chamada does not exist; nothing is written then.
func (s *Store) SetPresenca(ctx context.Context, turmaID, id, alunoID string, present bool) (schema.Chamada, bool, error) {
	return s.presenca(ctx, turmaID, id, alunoID, func(bool) bool { return present })
}

// TogglePresenca flips the presence of an aluno.
func (s *Store) TogglePresenca(ctx context.Context, turmaID, id, alunoID string) (schema.Chamada, bool, error) {
	return s.presenca(ctx, turmaID, id, alunoID, func(cur bool) bool { return !cur })
}

func (s *Store) presenca(ctx context.Context, turmaID, id, alunoID string, next func(bool) bool) (schema.Chamada, bool, error) {
	now := s.now()
	var out schema.Chamada
	found := false
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		found = false
		i := st.ChamadaIndex(turmaID, id)
		if i < 0 {
			return false, nil
		}
		if st.AlunoIndex(turmaID, alunoID) < 0 {
			return false, schema.NewFieldError("alunoId", "aluno não encontrado nesta turma")
		}
		cur := &st.Chamadas[turmaID][i]
		cur.Presencas[alunoID] = next(cur.Presencas[alunoID])
		cur.UpdatedAt = now
		out = cloneChamada(*cur)
		found = true
		return true, nil
	})
	if err != nil {
		return schema.Chamada{}, false, fmt.Errorf("failed to set presenca: %w", err)
	}
	return out, found, nil
}

// RemoveChamada deletes the chamada. Chamadas numbered after it move down
// one aula.
func (s *Store) RemoveChamada(ctx context.Context, turmaID, id string) error {
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		return st.RemoveChamada(turmaID, id), nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove chamada: %w", err)
	}
	return nil
}

// backfillNumeros gives every chamada without a positive aula number the
// smallest unused one, walking list in order. list must already be sorted
// by creation time.
func backfillNumeros(list []schema.Chamada) bool {
	used := make(map[int]bool, len(list))
	missing := 0
	for _, c := range list {
		if c.Numero > 0 {
			used[c.Numero] = true
		} else {
			missing++
		}
	}
	if missing == 0 {
		return false
	}

	next := 1
	for i := range list {
		if list[i].Numero > 0 {
			continue
		}
		for used[next] {
			next++
		}
		list[i].Numero = next
		used[next] = true
	}
	return true
}

// checkNumero reports whether chamada id may take aula numero in a turma
// that will hold n chamadas.
func checkNumero(list []schema.Chamada, id string, numero, n int) error {
	if numero > n {
		return schema.NewFieldError("numero", fmt.Sprintf("numero deve estar entre 1 e %d", n))
	}
	for _, other := range list {
		if other.ID != id && other.Numero == numero {
			return schema.NewFieldError("numero", fmt.Sprintf("a aula %d já pertence a outra chamada", numero))
		}
	}
	return nil
}

func maxNumero(list []schema.Chamada) int {
	m := 0
	for _, c := range list {
		m = max(m, c.Numero)
	}
	return m
}

func cloneChamada(c schema.Chamada) schema.Chamada {
	c.Presencas = maps.Clone(c.Presencas)
	if c.Presencas == nil {
		c.Presencas = make(map[string]bool)
	}
	return c
}

func cloneChamadas(list []schema.Chamada) []schema.Chamada {
	out := slices.Clone(list)
	for i := range out {
		out[i] = cloneChamada(out[i])
	}
	if out == nil {
		out = []schema.Chamada{}
	}
	return out
}
