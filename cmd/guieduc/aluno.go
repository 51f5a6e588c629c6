package main

import (
	"fmt"

	"github.com/guieduc/guieduc/internal/ui"
	"github.com/spf13/cobra"
)

var alunoCmd = &cobra.Command{
	Use:     "aluno",
	GroupID: "records",
	Short:   "Gerencia os alunos de uma turma",
}

var alunoListCmd = &cobra.Command{
	Use:   "list <turma>",
	Short: "Lista os alunos em ordem alfabética",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alunos, err := app.Store.ListAlunos(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(alunos)
		}
		if len(alunos) == 0 {
			fmt.Println(ui.RenderMuted("Nenhum aluno nesta turma"))
			return nil
		}
		for i, a := range alunos {
			fmt.Printf("%3d. %s  %s\n", i+1, a.Nome, ui.RenderMuted(a.ID))
		}
		return nil
	},
}

var alunoAddCmd = &cobra.Command{
	Use:   "add <turma> <nome>",
	Short: "Adiciona um aluno",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Service.AddAluno(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(a)
		}
		fmt.Printf("%s Aluno %s adicionado (%s)\n", ui.RenderPass("✓"), ui.RenderBold(a.Nome), a.ID)
		return nil
	},
}

var alunoRenameCmd = &cobra.Command{
	Use:   "rename <turma> <id> <nome>",
	Short: "Corrige o nome de um aluno",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Service.UpdateAluno(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(a)
		}
		fmt.Printf("%s Aluno %s atualizado\n", ui.RenderPass("✓"), ui.RenderBold(a.Nome))
		return nil
	},
}

var alunoRemoveCmd = &cobra.Command{
	Use:     "rm <turma> <id>",
	Aliases: []string{"remove"},
	Short:   "Remove um aluno e suas presenças",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Service.RemoveAluno(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s Aluno removido\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	alunoCmd.AddCommand(alunoListCmd, alunoAddCmd, alunoRenameCmd, alunoRemoveCmd)
	rootCmd.AddCommand(alunoCmd)
}
