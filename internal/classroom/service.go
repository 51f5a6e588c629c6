// Package classroom is the write path used by the CLI: every mutation goes
// to the local store first and is then queued as a sync event.
//
// When the store write succeeds but queueing fails, the record is still
// returned together with the error. The local change stands; only its
// replication is missing.
package classroom

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/guieduc/guieduc/internal/eventlog"
	"github.com/guieduc/guieduc/internal/schema"
	"github.com/guieduc/guieduc/internal/store"
)

// Service couples the local store with the outbound event log.
type Service struct {
	store  *store.Store
	queue  *eventlog.Queue
	logger *log.Logger
}

// New creates a Service. If logger is nil, a default logger writing to
// stderr is used.
func New(st *store.Store, q *eventlog.Queue, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[classroom] ", log.LstdFlags)
	}
	return &Service{store: st, queue: q, logger: logger}
}

// Store returns the underlying store for reads.
func (s *Service) Store() *store.Store {
	return s.store
}

// Queue returns the outbound event log.
func (s *Service) Queue() *eventlog.Queue {
	return s.queue
}

func (s *Service) emit(ctx context.Context, entity schema.Entity, op schema.Op, payload any) error {
	if _, err := s.queue.Enqueue(ctx, entity, op, payload); err != nil {
		s.logger.Printf("WARNING: %s %s saved locally but not queued for sync: %v", entity, op, err)
		return fmt.Errorf("failed to queue %s %s: %w", entity, op, err)
	}
	return nil
}

// AddTurma creates a turma.
func (s *Service) AddTurma(ctx context.Context, nome string) (schema.Turma, error) {
	t, err := s.store.AddTurma(ctx, nome)
	if err != nil {
		return schema.Turma{}, err
	}
	return t, s.emit(ctx, schema.EntityTurma, schema.OpCreate, t)
}

// RenameTurma renames (or creates) a turma.
func (s *Service) RenameTurma(ctx context.Context, id, nome string) (schema.Turma, error) {
	t, err := s.store.RenameTurma(ctx, id, nome)
	if err != nil {
		return schema.Turma{}, err
	}
	return t, s.emit(ctx, schema.EntityTurma, schema.OpUpdate, t)
}

// RemoveTurma deletes a turma and everything under it.
func (s *Service) RemoveTurma(ctx context.Context, id string) error {
	if err := s.store.RemoveTurma(ctx, id); err != nil {
		return err
	}
	return s.emit(ctx, schema.EntityTurma, schema.OpDelete, schema.Ref{ID: id})
}

// AddAluno creates an aluno.
func (s *Service) AddAluno(ctx context.Context, turmaID, nome string) (schema.Aluno, error) {
	a, err := s.store.AddAluno(ctx, turmaID, nome)
	if err != nil {
		return schema.Aluno{}, err
	}
	return a, s.emit(ctx, schema.EntityAluno, schema.OpCreate, schema.AlunoPayload{Aluno: a, TurmaID: turmaID})
}

// UpdateAluno renames (or creates) an aluno.
func (s *Service) UpdateAluno(ctx context.Context, turmaID, id, nome string) (schema.Aluno, error) {
	a, err := s.store.UpdateAluno(ctx, turmaID, id, nome)
	if err != nil {
		return schema.Aluno{}, err
	}
	return a, s.emit(ctx, schema.EntityAluno, schema.OpUpdate, schema.AlunoPayload{Aluno: a, TurmaID: turmaID})
}

// RemoveAluno deletes an aluno.
func (s *Service) RemoveAluno(ctx context.Context, turmaID, id string) error {
	if err := s.store.RemoveAluno(ctx, turmaID, id); err != nil {
		return err
	}
	return s.emit(ctx, schema.EntityAluno, schema.OpDelete, schema.Ref{ID: id, TurmaID: turmaID})
}

// AddChamada creates a chamada.
func (s *Service) AddChamada(ctx context.Context, turmaID, nome string, at schema.Millis) (schema.Chamada, error) {
	c, err := s.store.AddChamada(ctx, turmaID, nome, at)
	if err != nil {
		return schema.Chamada{}, err
	}
	return c, s.emit(ctx, schema.EntityChamada, schema.OpCreate, c)
}

// UpdateChamada merges c into the stored chamada (or creates it).
func (s *Service) UpdateChamada(ctx context.Context, c schema.Chamada) (schema.Chamada, error) {
	out, err := s.store.UpdateChamada(ctx, c)
	if err != nil {
		return schema.Chamada{}, err
	}
	return out, s.emit(ctx, schema.EntityChamada, schema.OpUpdate, out)
}

// SetPresenca marks an aluno present or absent. ok is false when the
// chamada does not exist.
func (s *Service) SetPresenca(ctx context.Context, turmaID, id, alunoID string, present bool) (schema.Chamada, bool, error) {
	c, ok, err := s.store.SetPresenca(ctx, turmaID, id, alunoID, present)
	if err != nil || !ok {
		return c, ok, err
	}
	return c, true, s.emit(ctx, schema.EntityChamada, schema.OpUpdate, c)
}

// TogglePresenca flips the presence of an aluno.
func (s *Service) TogglePresenca(ctx context.Context, turmaID, id, alunoID string) (schema.Chamada, bool, error) {
	c, ok, err := s.store.TogglePresenca(ctx, turmaID, id, alunoID)
	if err != nil || !ok {
		return c, ok, err
	}
	return c, true, s.emit(ctx, schema.EntityChamada, schema.OpUpdate, c)
}

// RemoveChamada deletes a chamada.
func (s *Service) RemoveChamada(ctx context.Context, turmaID, id string) error {
	if err := s.store.RemoveChamada(ctx, turmaID, id); err != nil {
		return err
	}
	return s.emit(ctx, schema.EntityChamada, schema.OpDelete, schema.Ref{ID: id, TurmaID: turmaID})
}

// UpdateConteudo upserts a conteudo. Conteudos are local only; they have
// no sync event.
func (s *Service) UpdateConteudo(ctx context.Context, in schema.ConteudoInput) (schema.Conteudo, error) {
	return s.store.UpdateConteudo(ctx, in)
}

// RemoveConteudo deletes a conteudo.
func (s *Service) RemoveConteudo(ctx context.Context, turmaID, id string) error {
	return s.store.RemoveConteudo(ctx, turmaID, id)
}
