package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/guieduc/guieduc/internal/schema"
)

// ListConteudos returns the conteudos of a turma by aula number, then
// creation time.
func (s *Store) ListConteudos(ctx context.Context, turmaID string) ([]schema.Conteudo, error) {
	st, _, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	list := slices.Clone(st.Conteudos[turmaID])
	sortConteudos(list)
	return list, nil
}

// GetConteudo returns the conteudo with id under turmaID.
func (s *Store) GetConteudo(ctx context.Context, turmaID, id string) (schema.Conteudo, bool, error) {
	st, _, err := s.Load(ctx)
	if err != nil {
		return schema.Conteudo{}, false, err
	}
	i := st.ConteudoIndex(turmaID, id)
	if i < 0 {
		return schema.Conteudo{}, false, nil
	}
	return st.Conteudos[turmaID][i], true, nil
}

// GetConteudoByAula returns the conteudo of aula under turmaID.
func (s *Store) GetConteudoByAula(ctx context.Context, turmaID string, aula int) (schema.Conteudo, bool, error) {
	st, _, err := s.Load(ctx)
	if err != nil {
		return schema.Conteudo{}, false, err
	}
	i := conteudoByAula(st.Conteudos[turmaID], aula)
	if i < 0 {
		return schema.Conteudo{}, false, nil
	}
	return st.Conteudos[turmaID][i], true, nil
}

// UpdateConteudo upserts a conteudo. The target is found by in.ID when set,
// otherwise by (in.TurmaID, in.Aula). Non-nil text fields overwrite the
// stored ones; nil fields keep them. A missing target is created. Moving a
// conteudo to an aula that another conteudo holds is rejected.
func (s *Store) UpdateConteudo(ctx context.Context, in schema.ConteudoInput) (schema.Conteudo, error) {
	in.TurmaID = strings.TrimSpace(in.TurmaID)
	in.ID = strings.TrimSpace(in.ID)
	if err := schema.Validate(in); err != nil {
		return schema.Conteudo{}, err
	}

	now := s.now()
	newID := s.newID()
	var out schema.Conteudo
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		if !st.HasTurma(in.TurmaID) {
			return false, errTurmaNotFound()
		}
		list := st.Conteudos[in.TurmaID]

		i := -1
		if in.ID != "" {
			i = st.ConteudoIndex(in.TurmaID, in.ID)
		}
		if i < 0 {
			i = conteudoByAula(list, in.Aula)
		} else if j := conteudoByAula(list, in.Aula); j >= 0 && j != i {
			return false, schema.NewFieldError("aula", fmt.Sprintf("a aula %d já tem outro conteúdo", in.Aula))
		}

		if i < 0 {
			c := schema.Conteudo{
				ID:        in.ID,
				TurmaID:   in.TurmaID,
				Aula:      in.Aula,
				CreatedAt: now,
			}
			if c.ID == "" {
				c.ID = newID
			}
			list = append(list, c)
			i = len(list) - 1
		}

		c := &list[i]
		c.Aula = in.Aula
		mergeText(&c.Titulo, in.Titulo)
		mergeText(&c.ConteudoAula, in.ConteudoAula)
		mergeText(&c.Objetivos, in.Objetivos)
		mergeText(&c.Desenvolvimento, in.Desenvolvimento)
		mergeText(&c.Recursos, in.Recursos)
		mergeText(&c.BNCC, in.BNCC)
		c.UpdatedAt = now

		st.Conteudos[in.TurmaID] = list
		out = *c
		return true, nil
	})
	if err != nil {
		return schema.Conteudo{}, fmt.Errorf("failed to update conteudo: %w", err)
	}
	return out, nil
}

// RemoveConteudo deletes the conteudo by id.
func (s *Store) RemoveConteudo(ctx context.Context, turmaID, id string) error {
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		return st.RemoveConteudo(turmaID, id), nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove conteudo: %w", err)
	}
	return nil
}

func conteudoByAula(list []schema.Conteudo, aula int) int {
	return slices.IndexFunc(list, func(c schema.Conteudo) bool { return c.Aula == aula })
}

func mergeText(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
