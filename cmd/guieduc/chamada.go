package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/guieduc/guieduc/internal/schema"
	"github.com/guieduc/guieduc/internal/ui"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/br"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

var chamadaCmd = &cobra.Command{
	Use:     "chamada",
	GroupID: "records",
	Short:   "Chamadas (listas de presença) de uma turma",
}

var chamadaListCmd = &cobra.Command{
	Use:   "list <turma>",
	Short: "Lista as chamadas pela ordem das aulas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chamadas, err := app.Store.ListChamadas(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(chamadas)
		}
		if len(chamadas) == 0 {
			fmt.Println(ui.RenderMuted("Nenhuma chamada nesta turma"))
			return nil
		}
		alunos, err := app.Store.ListAlunos(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, c := range chamadas {
			fmt.Printf("Aula %2d  %-24s %s  %s\n", c.Numero, c.Nome,
				c.CreatedAt.Time().Local().Format("02/01/2006"),
				ui.RenderMuted(fmt.Sprintf("%d/%d presentes  %s", c.PresentCount(), len(alunos), c.ID)))
		}
		return nil
	},
}

var chamadaAddCmd = &cobra.Command{
	Use:   "add <turma> [nome]",
	Short: "Abre uma nova chamada",
	Long: `Abre uma nova chamada com o próximo número de aula. Sem nome, a chamada
se chama "Aula N". A data pode ser dada em linguagem natural:

  guieduc chamada add T1 --when ontem
  guieduc chamada add T1 "Revisão" --when "last monday"
  guieduc chamada add T1 --when 2024-03-11`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nome := ""
		if len(args) == 2 {
			nome = args[1]
		}
		var at schema.Millis
		if text, _ := cmd.Flags().GetString("when"); text != "" {
			t, err := parseWhen(text, time.Now())
			if err != nil {
				return err
			}
			at = schema.FromTime(t)
		}

		c, err := app.Service.AddChamada(cmd.Context(), args[0], nome, at)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		fmt.Printf("%s %s aberta (aula %d, %s)\n", ui.RenderPass("✓"), ui.RenderBold(c.Nome), c.Numero, c.ID)
		return nil
	},
}

var chamadaShowCmd = &cobra.Command{
	Use:   "show <turma> <id>",
	Short: "Mostra a presença de cada aluno",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ok, err := app.Store.GetChamada(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("chamada %s não encontrada", args[1])
		}
		if jsonOutput {
			return printJSON(c)
		}
		alunos, err := app.Store.ListAlunos(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n\n", ui.RenderAccent(fmt.Sprintf("Aula %d", c.Numero)), ui.RenderBold(c.Nome))
		for _, a := range alunos {
			mark := ui.RenderFail("✗")
			if c.Present(a.ID) {
				mark = ui.RenderPass("✓")
			}
			fmt.Printf("  %s %s\n", mark, a.Nome)
		}
		fmt.Printf("\n%d/%d presentes\n", c.PresentCount(), len(alunos))
		return nil
	},
}

var chamadaMarkCmd = &cobra.Command{
	Use:   "mark <turma> <id> <aluno>",
	Short: "Marca presença (ou falta com --ausente)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		absent, _ := cmd.Flags().GetBool("ausente")
		c, ok, err := app.Service.SetPresenca(cmd.Context(), args[0], args[1], args[2], !absent)
		return reportPresenca(c, ok, args, err)
	},
}

var chamadaToggleCmd = &cobra.Command{
	Use:   "toggle <turma> <id> <aluno>",
	Short: "Inverte a presença de um aluno",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ok, err := app.Service.TogglePresenca(cmd.Context(), args[0], args[1], args[2])
		return reportPresenca(c, ok, args, err)
	},
}

func reportPresenca(c schema.Chamada, ok bool, args []string, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("chamada %s não encontrada", args[1])
	}
	if jsonOutput {
		return printJSON(c)
	}
	state := ui.RenderFail("ausente")
	if c.Present(args[2]) {
		state = ui.RenderPass("presente")
	}
	fmt.Printf("%s %s: %s\n", ui.RenderPass("✓"), args[2], state)
	return nil
}

var chamadaTakeCmd = &cobra.Command{
	Use:   "take <turma> <id>",
	Short: "Faz a chamada interativamente",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, ok, err := app.Store.GetChamada(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("chamada %s não encontrada", args[1])
		}
		alunos, err := app.Store.ListAlunos(ctx, args[0])
		if err != nil {
			return err
		}

		presencas, err := ui.TakeAttendance(fmt.Sprintf("Aula %d: %s", c.Numero, c.Nome), alunos, c.Presencas)
		if err != nil {
			return err
		}

		c.Presencas = presencas
		c, err = app.Service.UpdateChamada(ctx, c)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d/%d presentes\n", ui.RenderPass("✓"), c.PresentCount(), len(alunos))
		return nil
	},
}

var chamadaRenameCmd = &cobra.Command{
	Use:   "rename <turma> <id> <nome>",
	Short: "Renomeia uma chamada",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(args[2]) == "" {
			return fmt.Errorf("nome não pode ser vazio")
		}
		c, err := app.Service.UpdateChamada(cmd.Context(), schema.Chamada{ID: args[1], TurmaID: args[0], Nome: args[2]})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		fmt.Printf("%s Aula %d agora se chama %s\n", ui.RenderPass("✓"), c.Numero, ui.RenderBold(c.Nome))
		return nil
	},
}

var chamadaRemoveCmd = &cobra.Command{
	Use:     "rm <turma> <id>",
	Aliases: []string{"remove"},
	Short:   "Remove uma chamada",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Service.RemoveChamada(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s Chamada removida\n", ui.RenderPass("✓"))
		return nil
	},
}

// parseWhen reads a date as 2006-01-02, 02/01/2006, 02/01 (this year) or
// in Portuguese or English natural language.
func parseWhen(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			return t, nil
		}
	}
	if dm, err := time.Parse("02/01", text); err == nil {
		t := time.Date(now.Year(), dm.Month(), dm.Day(), 0, 0, 0, 0, now.Location())
		if t.Month() != dm.Month() {
			return time.Time{}, fmt.Errorf("data inválida %q: %d não tem esse dia", text, now.Year())
		}
		return t, nil
	}

	w := when.New(nil)
	w.Add(br.All...)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("data inválida %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("data não reconhecida: %q", text)
	}
	return r.Time, nil
}

func init() {
	chamadaAddCmd.Flags().String("when", "", `data da aula ("hoje", "ontem", "last friday", 2024-03-11)`)
	chamadaMarkCmd.Flags().Bool("ausente", false, "marcar falta em vez de presença")

	chamadaCmd.AddCommand(
		chamadaListCmd,
		chamadaAddCmd,
		chamadaShowCmd,
		chamadaMarkCmd,
		chamadaToggleCmd,
		chamadaTakeCmd,
		chamadaRenameCmd,
		chamadaRemoveCmd,
	)
	rootCmd.AddCommand(chamadaCmd)
}
