package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/guieduc/guieduc/internal/config"
	"github.com/guieduc/guieduc/internal/logging"
	"github.com/spf13/cobra"
)

// annotationNoStore marks commands that must not open the local namespace.
const annotationNoStore = "guieduc/no-store"

var (
	cfgFile    string
	verbose    bool
	jsonOutput bool

	cfg  *config.Config
	logs *logging.Factory
	app  *App
)

var rootCmd = &cobra.Command{
	Use:   "guieduc",
	Short: "Diário de classe offline com sincronização por eventos",
	Long: `guieduc keeps turmas, alunos, chamadas and conteúdos in a local namespace
that works without a network, and replicates changes through an append-only
event log pushed to a remote event store.

Every command that touches local data first runs the version/schema guard,
hydrates an empty device from the remote and flushes pending events.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(config.Options{File: cfgFile})
		if err != nil {
			return err
		}
		logs, err = logging.New(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Stderr:     verbose,
		})
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		if !needsStore(cmd) {
			return nil
		}
		app, err = OpenApp(cmd.Context(), cfg, logs)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoStore] == "true" {
			return false
		}
	}
	return true
}

func shutdown() {
	if app != nil {
		app.Close()
		app = nil
	}
	if logs != nil {
		_ = logs.Close()
		logs = nil
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: guieduc.yaml in . or the data dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "copy log output to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Registros:"},
		&cobra.Group{ID: "sync", Title: "Sincronização:"},
		&cobra.Group{ID: "data", Title: "Dados:"},
		&cobra.Group{ID: "services", Title: "Serviços:"},
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		shutdown()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
