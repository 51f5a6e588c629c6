package main

import (
	"fmt"
	"os"
	"time"

	"github.com/guieduc/guieduc/internal/guard"
	"github.com/guieduc/guieduc/internal/schema"
	"github.com/guieduc/guieduc/internal/ui"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Fila de eventos e servidor remoto",
}

func requireRemote() error {
	if app.Client == nil {
		return fmt.Errorf("nenhum servidor remoto configurado (remote.url ou GUIEDUC_REMOTE_URL)")
	}
	return nil
}

var syncFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Envia os eventos pendentes ao servidor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRemote(); err != nil {
			return err
		}
		res, err := app.Flusher.Flush(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		if res.Pushed == 0 {
			fmt.Println(ui.RenderMuted("Nada a enviar"))
			return nil
		}
		fmt.Printf("%s %d evento(s) enviados, %d novos no servidor\n", ui.RenderPass("✓"), res.Pushed, res.Saved)
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Baixa o histórico de eventos do servidor",
	Long: `Baixa o histórico completo de eventos. Com --apply, reaplica o histórico
sobre os dados locais (registros com o mesmo id são sobrescritos).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRemote(); err != nil {
			return err
		}
		events, err := app.Client.Pull(cmd.Context())
		if err != nil {
			return err
		}

		apply, _ := cmd.Flags().GetBool("apply")
		if !apply {
			if jsonOutput {
				return printJSON(events)
			}
			counts := map[schema.Entity]int{}
			for _, ev := range events {
				counts[ev.Entity]++
			}
			fmt.Printf("%d evento(s) no servidor: %d turma, %d aluno, %d chamada\n", len(events),
				counts[schema.EntityTurma], counts[schema.EntityAluno], counts[schema.EntityChamada])
			return nil
		}

		stats, err := app.Replay.ApplyEvents(cmd.Context(), events)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stats)
		}
		fmt.Printf("%s %d evento(s) aplicados, %d ignorados\n", ui.RenderPass("✓"), stats.Applied, stats.Ignored)
		return nil
	},
}

// syncStatus is the JSON shape of `sync status`.
type syncStatus struct {
	Namespace  string `json:"namespace"`
	AppVersion string `json:"app_version"`
	Schema     string `json:"schema"`
	Pending    int    `json:"pending"`
	Remote     string `json:"remote,omitempty"`
	Online     bool   `json:"online"`
	RemoteErr  string `json:"remote_error,omitempty"`
	Backup     bool   `json:"backup"`
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Mostra a fila pendente e o estado do servidor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st := syncStatus{
			Namespace:  app.Config.Namespace.Path,
			AppVersion: guard.AppVersion,
			Schema:     guard.SchemaVersion,
		}

		var err error
		if st.Pending, err = app.Queue.Len(ctx); err != nil {
			return err
		}
		if _, st.Backup, err = guard.LoadBackup(ctx, app.NS); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: backup record unreadable: %v\n", err)
		}
		if app.Client != nil {
			st.Remote = app.Client.BaseURL()
			if err := app.Client.Ping(ctx); err != nil {
				st.RemoteErr = err.Error()
			} else {
				st.Online = true
			}
		}

		if jsonOutput {
			return printJSON(st)
		}

		fmt.Printf("\n%s guieduc %s (schema %s)\n\n", ui.RenderAccent("📊"), st.AppVersion, st.Schema)
		fmt.Printf("   Namespace: %s\n", st.Namespace)
		fmt.Printf("   Pendentes: %d evento(s)\n", st.Pending)
		switch {
		case st.Remote == "":
			fmt.Printf("   Servidor:  %s\n", ui.RenderMuted("não configurado"))
		case st.Online:
			fmt.Printf("   Servidor:  %s %s\n", st.Remote, ui.RenderPass("online"))
		default:
			fmt.Printf("   Servidor:  %s %s\n", st.Remote, ui.RenderWarn("offline"))
			fmt.Printf("              %s\n", ui.RenderMuted(st.RemoteErr))
		}
		if st.Backup {
			fmt.Printf("   Backup:    %s\n", ui.RenderWarn("existe (guieduc guard restore)"))
		}
		fmt.Printf("   Verificado em %s\n\n", time.Now().Format("15:04:05"))
		return nil
	},
}

func init() {
	syncPullCmd.Flags().Bool("apply", false, "reaplicar o histórico sobre os dados locais")

	syncCmd.AddCommand(syncFlushCmd, syncPullCmd, syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
