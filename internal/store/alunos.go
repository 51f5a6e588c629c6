package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/guieduc/guieduc/internal/schema"
)

// ListAlunos returns the alunos of a turma ordered by name.
func (s *Store) ListAlunos(ctx context.Context, turmaID string) ([]schema.Aluno, error) {
	st, _, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	list := slices.Clone(st.Alunos[turmaID])
	sortByNome(list, func(a schema.Aluno) string { return a.Nome })
	return list, nil
}

// GetAluno returns the aluno with id under turmaID.
func (s *Store) GetAluno(ctx context.Context, turmaID, id string) (schema.Aluno, bool, error) {
	st, _, err := s.Load(ctx)
	if err != nil {
		return schema.Aluno{}, false, err
	}
	i := st.AlunoIndex(turmaID, id)
	if i < 0 {
		return schema.Aluno{}, false, nil
	}
	return st.Alunos[turmaID][i], true, nil
}

// AddAluno creates an aluno under an existing turma.
func (s *Store) AddAluno(ctx context.Context, turmaID, nome string) (schema.Aluno, error) {
	nome = strings.TrimSpace(nome)
	if err := schema.Validate(schema.AlunoInput{TurmaID: turmaID, Nome: nome}); err != nil {
		return schema.Aluno{}, err
	}

	a := schema.Aluno{ID: s.newID(), Nome: nome, CreatedAt: s.now()}
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		if !st.HasTurma(turmaID) {
			return false, errTurmaNotFound()
		}
		st.Alunos[turmaID] = append(st.Alunos[turmaID], a)
		return true, nil
	})
	if err != nil {
		return schema.Aluno{}, fmt.Errorf("failed to add aluno: %w", err)
	}
	return a, nil
}

// UpdateAluno renames the aluno. A missing aluno is created under id.
func (s *Store) UpdateAluno(ctx context.Context, turmaID, id, nome string) (schema.Aluno, error) {
	nome = strings.TrimSpace(nome)
	if err := schema.Validate(schema.AlunoInput{TurmaID: turmaID, Nome: nome}); err != nil {
		return schema.Aluno{}, err
	}
	if id == "" {
		return schema.Aluno{}, schema.NewFieldError("id", "id é obrigatório")
	}

	now := s.now()
	var out schema.Aluno
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		if !st.HasTurma(turmaID) {
			return false, errTurmaNotFound()
		}
		if i := st.AlunoIndex(turmaID, id); i >= 0 {
			a := &st.Alunos[turmaID][i]
			a.Nome = nome
			a.UpdatedAt = now
			out = *a
			return true, nil
		}
		out = schema.Aluno{ID: id, Nome: nome, CreatedAt: now, UpdatedAt: now}
		st.Alunos[turmaID] = append(st.Alunos[turmaID], out)
		return true, nil
	})
	if err != nil {
		return schema.Aluno{}, fmt.Errorf("failed to update aluno: %w", err)
	}
	return out, nil
}

// RemoveAluno deletes the aluno and drops it from the turma's presencas.
func (s *Store) RemoveAluno(ctx context.Context, turmaID, id string) error {
	err := s.Mutate(ctx, func(st *State) (bool, error) {
		return st.RemoveAluno(turmaID, id), nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove aluno: %w", err)
	}
	return nil
}
