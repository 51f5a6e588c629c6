// Package importer reads student lists exported from spreadsheets and adds
// them to a turma.
//
// Parse is pure: bytes in, rows out. Apply adds the rows one at a time and
// is not transactional. If row 7 fails, rows 1 to 6 stay added and Apply
// reports how far it got.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/guieduc/guieduc/internal/schema"
)

// Row is one student to import.
type Row struct {
	Line int // 1-based line in the source file
	Nome string
}

// ParseError reports a file that could not be read as a student list.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s, linha %d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// nameHeaders are the header cells that mark the name column.
var nameHeaders = map[string]bool{
	"nome":          true,
	"name":          true,
	"aluno":         true,
	"aluna":         true,
	"estudante":     true,
	"nome do aluno": true,
	"nome completo": true,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a .csv, .tsv or .txt student list. CSV and TSV files may
// start with a header row; the name column is the one headed by a known
// name label, otherwise the first column. TXT files hold one name per
// line. Blank names are skipped.
func Parse(name string, data []byte) ([]Row, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, &ParseError{File: name, Message: "o arquivo não está em UTF-8"}
	}

	var rows []Row
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, err = parseDelimited(name, data, sniffComma(data))
	case ".tsv":
		rows, err = parseDelimited(name, data, '\t')
	case ".txt":
		rows = parseLines(data)
	default:
		return nil, &ParseError{File: name, Message: "formato não suportado (use .csv, .tsv ou .txt)"}
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &ParseError{File: name, Message: "nenhum nome encontrado"}
	}
	return rows, nil
}

// sniffComma picks ';' for files whose first line has more semicolons than
// commas, as spreadsheets in pt-BR locales export them.
func sniffComma(data []byte) rune {
	first, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func parseDelimited(name string, data []byte, comma rune) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows []Row
	col := 0
	first := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &ParseError{File: name, Line: perr.Line, Message: perr.Err.Error()}
			}
			return nil, &ParseError{File: name, Message: err.Error()}
		}
		line, _ := r.FieldPos(0)

		if first {
			first = false
			if i, ok := headerColumn(record); ok {
				col = i
				continue
			}
		}
		if col >= len(record) {
			continue
		}
		if nome := strings.TrimSpace(record[col]); nome != "" {
			rows = append(rows, Row{Line: line, Nome: nome})
		}
	}
	return rows, nil
}

func headerColumn(record []string) (int, bool) {
	for i, cell := range record {
		if nameHeaders[strings.ToLower(strings.TrimSpace(cell))] {
			return i, true
		}
	}
	return 0, false
}

func parseLines(data []byte) []Row {
	var rows []Row
	for i, line := range strings.Split(string(data), "\n") {
		if nome := strings.TrimSpace(line); nome != "" {
			rows = append(rows, Row{Line: i + 1, Nome: nome})
		}
	}
	return rows
}

// Adder adds one aluno to a turma.
type Adder interface {
	AddAluno(ctx context.Context, turmaID, nome string) (schema.Aluno, error)
}

// Apply adds rows to the turma in order and stops at the first failure.
// It returns the number of rows added; those stay added when an error is
// returned.
func Apply(ctx context.Context, adder Adder, turmaID string, rows []Row) (int, error) {
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := adder.AddAluno(ctx, turmaID, row.Nome); err != nil {
			return i, fmt.Errorf("linha %d (%s): %w", row.Line, row.Nome, err)
		}
	}
	return len(rows), nil
}
