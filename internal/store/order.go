package store

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/guieduc/guieduc/internal/schema"
)

// sortByNome orders items by name the way a Brazilian Portuguese reader
// expects: accents are secondary and case is ignored. Equal names keep
// their stored order.
func sortByNome[T any](items []T, nome func(T) string) {
	// Collators are not safe for concurrent use.
	c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	slices.SortStableFunc(items, func(a, b T) int {
		return c.CompareString(nome(a), nome(b))
	})
}

func sortChamadas(list []schema.Chamada) {
	slices.SortStableFunc(list, func(a, b schema.Chamada) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
}

func sortConteudos(list []schema.Conteudo) {
	slices.SortStableFunc(list, func(a, b schema.Conteudo) int {
		return cmp.Or(
			cmp.Compare(a.Aula, b.Aula),
			cmp.Compare(a.CreatedAt, b.CreatedAt),
		)
	})
}
