package main

import (
	"fmt"

	"github.com/guieduc/guieduc/internal/ui"
	"github.com/spf13/cobra"
)

var turmaCmd = &cobra.Command{
	Use:     "turma",
	GroupID: "records",
	Short:   "Gerencia turmas",
}

var turmaListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lista as turmas em ordem alfabética",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		turmas, err := app.Store.ListTurmas(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(turmas)
		}
		if len(turmas) == 0 {
			fmt.Println(ui.RenderMuted("Nenhuma turma cadastrada"))
			return nil
		}
		for _, t := range turmas {
			alunos, _ := app.Store.ListAlunos(cmd.Context(), t.ID)
			fmt.Printf("%s  %s %s\n", ui.RenderMuted(t.ID), t.Nome, ui.RenderMuted(fmt.Sprintf("(%d alunos)", len(alunos))))
		}
		return nil
	},
}

var turmaAddCmd = &cobra.Command{
	Use:   "add <nome>",
	Short: "Cria uma turma",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := app.Service.AddTurma(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		fmt.Printf("%s Turma %s criada (%s)\n", ui.RenderPass("✓"), ui.RenderBold(t.Nome), t.ID)
		return nil
	},
}

var turmaRenameCmd = &cobra.Command{
	Use:   "rename <id> <nome>",
	Short: "Renomeia uma turma",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := app.Service.RenameTurma(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		fmt.Printf("%s Turma %s renomeada para %s\n", ui.RenderPass("✓"), t.ID, ui.RenderBold(t.Nome))
		return nil
	},
}

var turmaRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove uma turma com seus alunos, chamadas e conteúdos",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, ok, err := app.Store.GetTurma(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("turma %s não encontrada", args[0])
		}
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			confirmed, err := ui.Confirm(fmt.Sprintf("Remover %s e todos os seus registros?", t.Nome), false)
			if err != nil {
				return err
			}
			if !confirmed {
				return fmt.Errorf("cancelado; use --yes para confirmar sem terminal")
			}
		}
		if err := app.Service.RemoveTurma(cmd.Context(), t.ID); err != nil {
			return err
		}
		fmt.Printf("%s Turma %s removida\n", ui.RenderPass("✓"), t.Nome)
		return nil
	},
}

func init() {
	turmaRemoveCmd.Flags().BoolP("yes", "y", false, "não pedir confirmação")

	turmaCmd.AddCommand(turmaListCmd, turmaAddCmd, turmaRenameCmd, turmaRemoveCmd)
	rootCmd.AddCommand(turmaCmd)
}
