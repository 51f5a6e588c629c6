package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMillis_UnmarshalJSON(t *testing.T) {
	want := Millis(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC).UnixMilli())

	tests := []struct {
		name    string
		input   string
		want    Millis
		wantErr bool
	}{
		{name: "number", input: `1772452800000`, want: want},
		{name: "float number", input: `1772452800000.0`, want: want},
		{name: "numeric string", input: `"1772452800000"`, want: want},
		{name: "rfc3339 string", input: `"2026-03-02T12:00:00Z"`, want: want},
		{name: "null", input: `null`, want: 0},
		{name: "empty string", input: `""`, want: 0},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Millis
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMillis_MarshalsAsNumber(t *testing.T) {
	data, err := json.Marshal(Turma{ID: "T1", Nome: "A", CreatedAt: 42})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"createdAt":42`) {
		t.Errorf("createdAt not a number: %s", data)
	}
}

func TestNewID(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := newIDAt(at)

	if id != strings.ToUpper(id) {
		t.Errorf("id %q is not uppercase", id)
	}
	prefix := strings.ToUpper(strconvBase36(at.UnixMilli()))
	if !strings.HasPrefix(id, prefix) {
		t.Errorf("id %q does not start with time prefix %q", id, prefix)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(EntityTurma, OpCreate, Turma{ID: "T1", Nome: "7A"}, 1000)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	if ev.ID == "" {
		t.Error("event id is empty")
	}
	if ev.TS != 1000 {
		t.Errorf("ts = %d, want 1000", ev.TS)
	}

	var got Turma
	if err := json.Unmarshal(ev.Payload, &got); err != nil {
		t.Fatalf("payload is not a turma: %v", err)
	}
	if got.Nome != "7A" {
		t.Errorf("payload nome = %q, want 7A", got.Nome)
	}
}

func TestRef_Turma(t *testing.T) {
	var camel, snake Ref
	if err := json.Unmarshal([]byte(`{"id":"A","turmaId":"T1"}`), &camel); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"id":"A","turma_id":"T2"}`), &snake); err != nil {
		t.Fatal(err)
	}
	if camel.Turma() != "T1" {
		t.Errorf("camelCase turma = %q, want T1", camel.Turma())
	}
	if snake.Turma() != "T2" {
		t.Errorf("snake_case turma = %q, want T2", snake.Turma())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantField string
	}{
		{name: "valid nome", input: NomeInput{Nome: "7º Ano"}},
		{name: "blank nome", input: NomeInput{Nome: "   "}, wantField: "nome"},
		{name: "aluno without turma", input: AlunoInput{Nome: "Ana"}, wantField: "turmaId"},
		{name: "conteudo aula zero", input: ConteudoInput{TurmaID: "T1", Aula: 0}, wantField: "aula"},
		{name: "conteudo aula negative", input: ConteudoInput{TurmaID: "T1", Aula: -2}, wantField: "aula"},
		{name: "valid conteudo", input: ConteudoInput{TurmaID: "T1", Aula: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(ve.Fields) != 1 || ve.Fields[0].Field != tt.wantField {
				t.Errorf("fields = %+v, want one error on %q", ve.Fields, tt.wantField)
			}
			if ve.Fields[0].Message == "" {
				t.Error("field error has no message")
			}
		})
	}
}

func TestChamada_Present(t *testing.T) {
	c := Chamada{Presencas: map[string]bool{"A": true, "B": false}}
	if !c.Present("A") {
		t.Error("A should be present")
	}
	if c.Present("B") || c.Present("missing") {
		t.Error("B and missing keys should not be present")
	}
	if c.PresentCount() != 1 {
		t.Errorf("PresentCount = %d, want 1", c.PresentCount())
	}
}

func strconvBase36(n int64) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%36]}, buf...)
		n /= 36
	}
	return string(buf)
}
