// Package schema defines the records kept in the local namespace and the
// sync events that replicate them.
//
// # Overview
//
// The local namespace holds one JSON blob under DataKey:
//
//	{
//	  "turmas":    [{"id": "LZ3K9Q2ABCD", "nome": "7º Ano A", "createdAt": 1767225600000}],
//	  "alunos":    {"LZ3K9Q2ABCD": [{"id": "...", "nome": "Ana", "createdAt": ...}]},
//	  "chamadas":  {"LZ3K9Q2ABCD": [{"id": "...", "turmaId": "...", "numero": 1, "presencas": {"<alunoId>": true}}]},
//	  "conteudos": {"LZ3K9Q2ABCD": [{"id": "...", "turmaId": "...", "aula": 1, "titulo": "..."}]}
//	}
//
// All timestamps are milliseconds since the Unix epoch (Millis).
//
// # Sync Events
//
// Mutations of turmas, alunos and chamadas are recorded as Event values:
//
//	{"id": "2f1c...", "entity": "aluno", "op": "create", "payload": {...}, "ts": 1767225600000}
//
// Events are append-only. Ordering by ts is the only consistency mechanism;
// there are no vector clocks and no conflict detection.
//
// # Identifiers
//
// Record ids come from NewID: a base-36 millisecond prefix followed by a
// random base-36 suffix, uppercased. They are collision resistant, not
// cryptographic. Event ids are random UUIDs.
//
// # Validation
//
// Input structs carry go-playground/validator tags. Validate reports every
// failing field with a pt-BR message inside a *ValidationError.
package schema
