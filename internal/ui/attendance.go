package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/guieduc/guieduc/internal/schema"
)

// ErrNotInteractive is returned by forms when there is no terminal.
var ErrNotInteractive = errors.New("interactive terminal required")

// AttendanceOptions builds one option per aluno, preselected when present.
func AttendanceOptions(alunos []schema.Aluno, presencas map[string]bool) []huh.Option[string] {
	opts := make([]huh.Option[string], len(alunos))
	for i, a := range alunos {
		opts[i] = huh.NewOption(a.Nome, a.ID).Selected(presencas[a.ID])
	}
	return opts
}

// TakeAttendance asks which alunos are present and returns the full
// presence map, false for everyone left unchecked.
func TakeAttendance(title string, alunos []schema.Aluno, presencas map[string]bool) (map[string]bool, error) {
	if !IsInteractive() {
		return nil, ErrNotInteractive
	}
	if len(alunos) == 0 {
		return map[string]bool{}, nil
	}

	var present []string
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title(title).
			Description("espaço marca, enter confirma").
			Options(AttendanceOptions(alunos, presencas)...).
			Height(min(len(alunos)+2, 20)).
			Value(&present),
	))
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("attendance form: %w", err)
	}
	return PresenceMap(alunos, present), nil
}

// PresenceMap marks every aluno present or absent from the selected ids.
func PresenceMap(alunos []schema.Aluno, present []string) map[string]bool {
	out := make(map[string]bool, len(alunos))
	for _, a := range alunos {
		out[a.ID] = false
	}
	for _, id := range present {
		if _, ok := out[id]; ok {
			out[id] = true
		}
	}
	return out
}

// Confirm asks a yes/no question; without a terminal it returns def.
func Confirm(question string, def bool) (bool, error) {
	if !IsInteractive() {
		return def, nil
	}
	answer := def
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Sim").
		Negative("Não").
		Value(&answer).
		Run()
	if err != nil {
		return false, err
	}
	return answer, nil
}
