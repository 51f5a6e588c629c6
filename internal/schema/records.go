package schema

// Turma is a class grouping students. Names may collide; identity is the id.
type Turma struct {
	ID        string `json:"id"`
	Nome      string `json:"nome"`
	CreatedAt Millis `json:"createdAt"`
	UpdatedAt Millis `json:"updatedAt,omitempty"`
}

// Aluno is a student. It is stored under its turma and never shared.
type Aluno struct {
	ID        string `json:"id"`
	Nome      string `json:"nome"`
	CreatedAt Millis `json:"createdAt"`
	UpdatedAt Millis `json:"updatedAt,omitempty"`
}

// Chamada is one attendance session of a turma.
//
// Numero is the aula number, a stable 1..N ordinal by creation order.
// Zero means it has not been assigned yet; the store backfills it on read.
type Chamada struct {
	ID        string          `json:"id"`
	TurmaID   string          `json:"turmaId"`
	Nome      string          `json:"nome"`
	Numero    int             `json:"numero,omitempty"`
	Presencas map[string]bool `json:"presencas"`
	CreatedAt Millis          `json:"createdAt"`
	UpdatedAt Millis          `json:"updatedAt"`
}

// Present reports whether the aluno was marked present.
// A missing key means not present.
func (c *Chamada) Present(alunoID string) bool {
	return c.Presencas[alunoID]
}

// PresentCount returns how many alunos are marked present.
func (c *Chamada) PresentCount() int {
	n := 0
	for _, ok := range c.Presencas {
		if ok {
			n++
		}
	}
	return n
}

// Conteudo is the lesson plan of one aula of a turma.
// Its logical key is (TurmaID, Aula).
type Conteudo struct {
	ID              string `json:"id"`
	TurmaID         string `json:"turmaId"`
	Aula            int    `json:"aula"`
	Titulo          string `json:"titulo"`
	ConteudoAula    string `json:"conteudoAula"`
	Objetivos       string `json:"objetivos"`
	Desenvolvimento string `json:"desenvolvimento"`
	Recursos        string `json:"recursos"`
	BNCC            string `json:"bncc"`
	CreatedAt       Millis `json:"createdAt"`
	UpdatedAt       Millis `json:"updatedAt"`
}
