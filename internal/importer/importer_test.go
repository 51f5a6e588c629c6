package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/guieduc/guieduc/internal/schema"
)

func names(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Nome
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
		want []string
	}{
		{
			name: "csv with header in second column",
			file: "turma.csv",
			data: "matricula,Nome\n1,Ana Souza\n2, Bruno Lima \n3,\n",
			want: []string{"Ana Souza", "Bruno Lima"},
		},
		{
			name: "csv without header",
			file: "lista.CSV",
			data: "Ana\nBruno\n",
			want: []string{"Ana", "Bruno"},
		},
		{
			name: "semicolon csv with BOM",
			file: "planilha.csv",
			data: "\xEF\xBB\xBFNº;Aluno;Nascimento\n1;Carla;2012-01-01\n2;\"Davi, o Jr\";2012-02-02\n",
			want: []string{"Carla", "Davi, o Jr"},
		},
		{
			name: "tsv",
			file: "export.tsv",
			data: "nome\tturma\nÉrica\t7A\nFábio\t7A\n",
			want: []string{"Érica", "Fábio"},
		},
		{
			name: "txt with blank lines and CRLF",
			file: "nomes.txt",
			data: "Gabi\r\n\r\n  Hugo  \r\n",
			want: []string{"Gabi", "Hugo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Parse(tt.file, []byte(tt.data))
			if err != nil {
				t.Fatalf("Parse() failed: %v", err)
			}
			got := names(rows)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("names = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_LineNumbers(t *testing.T) {
	rows, err := Parse("a.csv", []byte("nome\nAna\n\nBia\n"))
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Line != 2 || rows[1].Line != 4 {
		t.Errorf("lines = %d, %d; want 2, 4", rows[0].Line, rows[1].Line)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"unsupported extension", "lista.xlsx", "PK\x03\x04"},
		{"not utf-8", "lista.txt", "Jo\xe3o"},
		{"empty", "vazia.csv", "nome\n\n"},
		{"broken quotes", "ruim.csv", "nome\n\"Ana\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file, []byte(tt.data))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if perr.File != tt.file || perr.Message == "" {
				t.Errorf("ParseError = %+v", perr)
			}
		})
	}
}

type fakeAdder struct {
	added  []string
	failAt string
}

func (f *fakeAdder) AddAluno(ctx context.Context, turmaID, nome string) (schema.Aluno, error) {
	if nome == f.failAt {
		return schema.Aluno{}, schema.NewFieldError("nome", "nome inválido")
	}
	f.added = append(f.added, nome)
	return schema.Aluno{ID: nome, Nome: nome}, nil
}

func TestApply_NotAtomic(t *testing.T) {
	rows := []Row{{1, "Ana"}, {2, "Bia"}, {3, "RUIM"}, {4, "Caio"}}
	adder := &fakeAdder{failAt: "RUIM"}

	n, err := Apply(context.Background(), adder, "T", rows)
	if err == nil {
		t.Fatal("Apply() succeeded, want error")
	}
	if !schema.IsValidation(err) {
		t.Errorf("err = %v, want wrapped validation error", err)
	}
	if n != 2 || len(adder.added) != 2 {
		t.Errorf("applied = %d (%v), want the 2 rows before the failure", n, adder.added)
	}
}

func TestApply_All(t *testing.T) {
	adder := &fakeAdder{}
	n, err := Apply(context.Background(), adder, "T", []Row{{1, "Ana"}, {2, "Bia"}})
	if err != nil || n != 2 {
		t.Errorf("Apply() = %d, %v", n, err)
	}
}
