package main

import (
	"fmt"
	"strconv"

	"github.com/guieduc/guieduc/internal/schema"
	"github.com/guieduc/guieduc/internal/ui"
	"github.com/spf13/cobra"
)

var conteudoCmd = &cobra.Command{
	Use:     "conteudo",
	GroupID: "records",
	Short:   "Planos de aula (conteúdos) de uma turma",
	Long: `Planos de aula por número de aula. Conteúdos ficam só neste dispositivo:
não geram eventos de sincronização.`,
}

var conteudoListCmd = &cobra.Command{
	Use:   "list <turma>",
	Short: "Lista os conteúdos pela ordem das aulas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := app.Store.ListConteudos(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println(ui.RenderMuted("Nenhum conteúdo nesta turma"))
			return nil
		}
		for _, c := range list {
			fmt.Printf("Aula %2d  %s  %s\n", c.Aula, c.Titulo, ui.RenderMuted(c.BNCC))
		}
		return nil
	},
}

var conteudoShowCmd = &cobra.Command{
	Use:   "show <turma> <aula>",
	Short: "Mostra o conteúdo de uma aula",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		aula, err := parseAula(args[1])
		if err != nil {
			return err
		}
		c, ok, err := app.Store.GetConteudoByAula(cmd.Context(), args[0], aula)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aula %d sem conteúdo", aula)
		}
		if jsonOutput {
			return printJSON(c)
		}
		fmt.Printf("%s  %s\n", ui.RenderAccent(fmt.Sprintf("Aula %d", c.Aula)), ui.RenderBold(c.Titulo))
		for _, f := range []struct{ label, value string }{
			{"Conteúdo", c.ConteudoAula},
			{"Objetivos", c.Objetivos},
			{"Desenvolvimento", c.Desenvolvimento},
			{"Recursos", c.Recursos},
			{"BNCC", c.BNCC},
		} {
			if f.value != "" {
				fmt.Printf("\n%s\n%s\n", ui.RenderMuted(f.label), f.value)
			}
		}
		return nil
	},
}

var conteudoSetCmd = &cobra.Command{
	Use:   "set <turma> <aula>",
	Short: "Cria ou atualiza o conteúdo de uma aula",
	Long: `Cria ou atualiza o conteúdo de uma aula. Só os campos passados mudam:

  guieduc conteudo set T1 3 --titulo "Frações" --bncc EF05MA03`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		aula, err := parseAula(args[1])
		if err != nil {
			return err
		}
		in := schema.ConteudoInput{TurmaID: args[0], Aula: aula}
		in.ID, _ = cmd.Flags().GetString("id")

		fields := map[string]**string{
			"titulo":          &in.Titulo,
			"conteudo":        &in.ConteudoAula,
			"objetivos":       &in.Objetivos,
			"desenvolvimento": &in.Desenvolvimento,
			"recursos":        &in.Recursos,
			"bncc":            &in.BNCC,
		}
		for flag, dst := range fields {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
			}
		}

		c, err := app.Service.UpdateConteudo(cmd.Context(), in)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		fmt.Printf("%s Conteúdo da aula %d salvo\n", ui.RenderPass("✓"), c.Aula)
		return nil
	},
}

var conteudoRemoveCmd = &cobra.Command{
	Use:     "rm <turma> <id>",
	Aliases: []string{"remove"},
	Short:   "Remove um conteúdo",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Service.RemoveConteudo(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s Conteúdo removido\n", ui.RenderPass("✓"))
		return nil
	},
}

func parseAula(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("aula deve ser um número maior que 0, recebido %q", s)
	}
	return n, nil
}

func init() {
	conteudoSetCmd.Flags().String("id", "", "id do conteúdo (padrão: procurar pela aula)")
	conteudoSetCmd.Flags().String("titulo", "", "título")
	conteudoSetCmd.Flags().String("conteudo", "", "conteúdo da aula")
	conteudoSetCmd.Flags().String("objetivos", "", "objetivos")
	conteudoSetCmd.Flags().String("desenvolvimento", "", "desenvolvimento")
	conteudoSetCmd.Flags().String("recursos", "", "recursos")
	conteudoSetCmd.Flags().String("bncc", "", "habilidades BNCC")

	conteudoCmd.AddCommand(conteudoListCmd, conteudoShowCmd, conteudoSetCmd, conteudoRemoveCmd)
	rootCmd.AddCommand(conteudoCmd)
}
