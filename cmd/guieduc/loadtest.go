package main

import (
	"fmt"
	"os"

	"github.com/guieduc/guieduc/internal/loadtest"
	"github.com/guieduc/guieduc/internal/ui"
	"github.com/spf13/cobra"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "services",
	Short:   "Simula várias abas gravando no mesmo namespace ao mesmo tempo",
	Long: `Abre um namespace temporário com várias conexões (uma por aba simulada).
Cada aba cadastra alunos e marca presença em paralelo. No fim, confere que
nenhuma gravação se perdeu e que a fila de eventos reproduz os dados.

Exemplos:
  guieduc loadtest
  guieduc loadtest --tabs 16 --ops 100
  guieduc loadtest --keep --json`,
	Annotations: map[string]string{annotationNoStore: "true"},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tabs, _ := cmd.Flags().GetInt("tabs")
		ops, _ := cmd.Flags().GetInt("ops")
		rate, _ := cmd.Flags().GetFloat64("presenca")
		keep, _ := cmd.Flags().GetBool("keep")

		if rate < 0 || rate > 1 {
			return fmt.Errorf("--presenca must be between 0.0 and 1.0")
		}

		dir, err := os.MkdirTemp("", "guieduc-loadtest-")
		if err != nil {
			return fmt.Errorf("failed to create temp dir: %w", err)
		}
		if !keep {
			defer os.RemoveAll(dir)
		}

		lcfg := loadtest.DefaultConfig(dir)
		lcfg.Tabs = tabs
		lcfg.OpsPerTab = ops
		lcfg.PresencaRate = rate
		lcfg.Logger = logs.Logger("loadtest")

		if !jsonOutput {
			fmt.Printf("%s %d abas × %d alunos em %s\n\n", ui.RenderAccent("⏱"), tabs, ops, dir)
		}
		rep, err := loadtest.Run(cmd.Context(), lcfg)
		if err != nil {
			return err
		}
		verr := loadtest.Verify(cmd.Context(), lcfg, rep)

		if jsonOutput {
			out := struct {
				*loadtest.Report
				OK    bool   `json:"ok"`
				Error string `json:"error,omitempty"`
			}{Report: rep, OK: verr == nil}
			if verr != nil {
				out.Error = verr.Error()
			}
			if err := printJSON(out); err != nil {
				return err
			}
		} else {
			rep.Print(os.Stdout)
			fmt.Println()
			if verr == nil {
				fmt.Printf("%s Nenhuma gravação perdida\n", ui.RenderPass("✓"))
			}
		}
		return verr
	},
}

func init() {
	loadtestCmd.Flags().Int("tabs", 8, "abas simuladas")
	loadtestCmd.Flags().Int("ops", 25, "alunos cadastrados por aba")
	loadtestCmd.Flags().Float64("presenca", 0.5, "fração de alunos marcados presentes (0.0-1.0)")
	loadtestCmd.Flags().Bool("keep", false, "manter o namespace temporário")
	rootCmd.AddCommand(loadtestCmd)
}
