package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/guieduc/guieduc/internal/backup"
	"github.com/guieduc/guieduc/internal/guard"
	"github.com/guieduc/guieduc/internal/importer"
	"github.com/guieduc/guieduc/internal/ui"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export [arquivo]",
	GroupID: "data",
	Short:   "Exporta todos os dados locais em JSON",
	Long: `Exporta todas as chaves da aplicação num único documento JSON. Sem
arquivo, ou com "-", escreve na saída padrão.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := os.Hostname()
		d, err := backup.Export(cmd.Context(), app.NS, host)
		if err != nil {
			return err
		}

		if len(args) == 0 || args[0] == "-" {
			return backup.Encode(os.Stdout, d)
		}
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[0], err)
		}
		if err := backup.Encode(f, d); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s %d chave(s) exportadas para %s\n", ui.RenderPass("✓"), len(d.Data), args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <arquivo>",
	GroupID: "data",
	Short:   "Importa um arquivo gerado por export",
	Long: `Grava de volta cada chave do arquivo, sobrescrevendo os valores locais.
Não há mesclagem: chaves presentes no arquivo substituem as locais, as demais
ficam como estão. Use "-" para ler da entrada padrão.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		d, err := backup.Decode(r)
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			ok, err := ui.Confirm(fmt.Sprintf("Sobrescrever %d chave(s) com o export de %s (%s)?",
				len(d.Data), d.Origin, d.ExportedAt.Local().Format(time.DateTime)), false)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("cancelado; use --yes para confirmar sem terminal")
			}
		}

		n, err := backup.Import(cmd.Context(), app.NS, d)
		if err != nil {
			return fmt.Errorf("import stopped after %d key(s): %w", n, err)
		}
		fmt.Printf("%s %d chave(s) importadas\n", ui.RenderPass("✓"), n)
		return nil
	},
}

var importAlunosCmd = &cobra.Command{
	Use:     "import-alunos <turma> <arquivo>",
	GroupID: "data",
	Short:   "Importa uma lista de alunos (.csv, .tsv ou .txt)",
	Long: `Lê nomes de alunos de uma planilha exportada em CSV/TSV ou de um texto
com um nome por linha e adiciona cada um à turma, na ordem do arquivo.

Se um nome falhar, os anteriores continuam adicionados.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		rows, err := importer.Parse(args[1], data)
		if err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			if jsonOutput {
				return printJSON(rows)
			}
			for _, r := range rows {
				fmt.Printf("%4d  %s\n", r.Line, r.Nome)
			}
			fmt.Printf("\n%d nome(s) encontrados\n", len(rows))
			return nil
		}

		n, err := importer.Apply(cmd.Context(), app.Service, args[0], rows)
		if err != nil {
			if n > 0 {
				fmt.Fprintf(os.Stderr, "%s %d de %d aluno(s) adicionados antes do erro\n", ui.RenderWarn("⚠"), n, len(rows))
			}
			return err
		}
		fmt.Printf("%s %d aluno(s) adicionados\n", ui.RenderPass("✓"), n)
		return nil
	},
}

var guardCmd = &cobra.Command{
	Use:     "guard",
	GroupID: "data",
	Short:   "Backup feito na última mudança de schema",
}

var guardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Mostra o backup salvo, se houver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, ok, err := guard.LoadBackup(cmd.Context(), app.NS)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(ui.RenderMuted("Nenhum backup salvo"))
			return nil
		}
		if jsonOutput {
			return printJSON(b)
		}
		fmt.Printf("Backup do schema %s → %s, feito em %s\n", b.FromSchema, b.ToSchema,
			b.CreatedAt.Time().Local().Format(time.DateTime))
		for _, k := range b.Keys() {
			fmt.Printf("   %s (%d bytes)\n", k, len(b.Data[k]))
		}
		return nil
	},
}

var guardRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Regrava as chaves do backup",
	Long: `Regrava as chaves salvas antes da última limpeza por mudança de schema.
Os valores estão no formato do schema antigo.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := guard.RestoreBackup(cmd.Context(), app.NS)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d chave(s) restauradas\n", ui.RenderPass("✓"), n)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolP("yes", "y", false, "não pedir confirmação")
	importAlunosCmd.Flags().Bool("dry-run", false, "só mostrar os nomes lidos")

	guardCmd.AddCommand(guardShowCmd, guardRestoreCmd)
	rootCmd.AddCommand(exportCmd, importCmd, importAlunosCmd, guardCmd)
}
