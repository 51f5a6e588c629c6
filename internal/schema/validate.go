package schema

import (
	"errors"
	"reflect"
	"strings"

	ptbr "github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ptbr_translations "github.com/go-playground/validator/v10/translations/pt_BR"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag  = "notblank"
	notBlankText = "{0} não pode ficar em branco"
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	locale := ptbr.New()
	uni := ut.New(locale, locale)
	translator, _ = uni.GetTranslator("pt_BR")
	_ = ptbr_translations.RegisterDefaultTranslations(validate, translator)

	// Report json names ("nome", "aula") instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(t ut.Translator) error { return t.Add(notBlankTag, notBlankText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(notBlankTag, fe.Field())
			return s
		},
	)
}

// FieldError is a rejected input field with a user-facing message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for input rejected at the call boundary.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// NewFieldError builds a single-field ValidationError.
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks v against its validate tags.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(translator),
		})
	}
	return out
}

// NomeInput validates a turma name.
type NomeInput struct {
	Nome string `json:"nome" validate:"notblank,max=200"`
}

// AlunoInput validates a new or renamed aluno.
type AlunoInput struct {
	TurmaID string `json:"turmaId" validate:"required"`
	Nome    string `json:"nome" validate:"notblank,max=200"`
}

// ChamadaInput validates a new chamada. An empty Nome is filled with
// "Aula N" by the store.
type ChamadaInput struct {
	TurmaID string `json:"turmaId" validate:"required"`
	Nome    string `json:"nome" validate:"max=200"`
}

// ConteudoInput is an upsert of a conteudo. Nil text fields keep their
// current value.
type ConteudoInput struct {
	ID              string  `json:"id"`
	TurmaID         string  `json:"turmaId" validate:"required"`
	Aula            int     `json:"aula" validate:"gt=0"`
	Titulo          *string `json:"titulo"`
	ConteudoAula    *string `json:"conteudoAula"`
	Objetivos       *string `json:"objetivos"`
	Desenvolvimento *string `json:"desenvolvimento"`
	Recursos        *string `json:"recursos"`
	BNCC            *string `json:"bncc"`
}
