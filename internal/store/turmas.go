package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/guieduc/guieduc/internal/schema"
)

// ListTurmas returns every turma ordered by name.
func (s *Store) ListTurmas(ctx context.Context) ([]schema.Turma, error) {
	st, _, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	list := slices.Clone(st.Turmas)
	sortByNome(list, func(t schema.Turma) string { return t.Nome })
	return list, nil
}

// GetTurma returns the turma with id. ok is false when it does not exist.
func (s *Store) GetTurma(ctx context.Context, id string) (schema.Turma, bool, error) {
	st, _, err := s.Load(ctx)
	if err != nil {
		return schema.Turma{}, false, err
	}
	i := st.TurmaIndex(id)
	if i < 0 {
		return schema.Turma{}, false, nil
	}
	return st.Turmas[i], true, nil
}

// AddTurma creates a turma.
func (s *Store) AddTurma(ctx context.Context, nome string) (schema.Turma, error) {
	nome = strings.TrimSpace(nome)
	if err := schema.Validate(schema.NomeInput{Nome: nome}); err != nil {
		return schema.Turma{}, err
	}

	t := schema.Turma{ID: s.newID(), Nome: nome, CreatedAt: s.now()}
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		st.Turmas = append(st.Turmas, t)
		return true, nil
	})
	if err != nil {
		return schema.Turma{}, fmt.Errorf("failed to add turma: %w", err)
	}
	return t, nil
}

// RenameTurma sets the name of the turma. A missing turma is created under
// id, like every other update.
func (s *Store) RenameTurma(ctx context.Context, id, nome string) (schema.Turma, error) {
	nome = strings.TrimSpace(nome)
	if err := schema.Validate(schema.NomeInput{Nome: nome}); err != nil {
		return schema.Turma{}, err
	}
	if id == "" {
		return schema.Turma{}, schema.NewFieldError("id", "id é obrigatório")
	}

	now := s.now()
	var out schema.Turma
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		if i := st.TurmaIndex(id); i >= 0 {
			st.Turmas[i].Nome = nome
			st.Turmas[i].UpdatedAt = now
			out = st.Turmas[i]
			return true, nil
		}
		out = schema.Turma{ID: id, Nome: nome, CreatedAt: now, UpdatedAt: now}
		st.Turmas = append(st.Turmas, out)
		return true, nil
	})
	if err != nil {
		return schema.Turma{}, fmt.Errorf("failed to rename turma: %w", err)
	}
	return out, nil
}

// RemoveTurma deletes the turma with its alunos, chamadas and conteudos.
// Removing a missing turma is a no-op.
func (s *Store) RemoveTurma(ctx context.Context, id string) error {
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		return st.RemoveTurma(id), nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove turma: %w", err)
	}
	return nil
}
