package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/guieduc/guieduc/internal/config"
	"github.com/guieduc/guieduc/internal/daemon"
	"github.com/guieduc/guieduc/internal/dashboard"
	"github.com/guieduc/guieduc/internal/remote"
	"github.com/guieduc/guieduc/internal/ui"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "services",
	Short:   "Envia eventos pendentes sempre que o servidor estiver acessível",
	Long: `Roda em primeiro plano e:
  1. envia a fila ao iniciar
  2. testa o servidor a cada daemon.check_interval
  3. envia a fila quando o servidor volta a responder
  4. com daemon.watch, envia também quando outro processo grava no namespace`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRemote(); err != nil {
			return err
		}

		dcfg := &daemon.Config{
			CheckInterval: app.Config.Daemon.CheckInterval,
			PingTimeout:  app.Config.Remote.Timeout,
			Logger:        logs.Logger("daemon"),
		}
		if app.Config.Daemon.Watch {
			dcfg.NamespacePath = app.Config.Namespace.Path
		}
		d, err := daemon.New(app.Flusher, app.Client, dcfg)
		if err != nil {
			return err
		}

		fmt.Printf("%s Daemon de sincronização iniciado\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Servidor: %s\n", app.Client.BaseURL())
		fmt.Printf("   Namespace: %s\n", app.Config.Namespace.Path)
		fmt.Printf("\nCtrl+C para parar\n\n")

		return d.Run(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:         "serve",
	GroupID:     "services",
	Short:       "Roda o servidor de eventos (push/pull) e o feed ao vivo",
	Annotations: map[string]string{annotationNoStore: "true"},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			cfg.Server.Listen, _ = cmd.Flags().GetString("listen")
		}

		events, err := remote.Open(&remote.Config{
			Driver: cfg.Server.Driver,
			DSN:    cfg.Server.DSN,
			Logger: logs.Logger("remote"),
		})
		if err != nil {
			return err
		}
		defer events.Close()

		srvCfg := &remote.ServerConfig{Logger: logs.Logger("remote")}
		var feed *dashboard.Server
		if cfg.Feed.Port > 0 {
			feed = dashboard.NewServer(&dashboard.Config{Port: cfg.Feed.Port, Logger: logs.Logger("feed")})
			if err := feed.Start(); err != nil {
				return err
			}
			defer feed.Stop()
			srvCfg.Notifier = feed
		}
		srv := remote.NewServer(events, srvCfg)

		fmt.Printf("%s Servidor de eventos em %s (%s)\n", ui.RenderAccent("🚀"), cfg.Server.Listen, cfg.Server.Driver)
		if feed != nil {
			fmt.Printf("   Feed ao vivo: ws://%s/ws\n", feed.Addr())
		}
		fmt.Printf("\nCtrl+C para parar\n\n")

		errc := make(chan error, 1)
		go func() { errc <- srv.Listen(cfg.Server.Listen) }()

		select {
		case err := <-errc:
			return err
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		fmt.Println("Servidor parado")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:         "config",
	GroupID:     "services",
	Short:       "Arquivo de configuração",
	Annotations: map[string]string{annotationNoStore: "true"},
}

var configInitCmd = &cobra.Command{
	Use:   "init [arquivo]",
	Short: "Escreve um arquivo de configuração com os valores atuais",
	Long: `Escreve a configuração efetiva (padrões, .env e variáveis GUIEDUC_*) num
arquivo .yaml, .yml ou .toml. Sem argumento, usa guieduc.yaml no diretório
de dados.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(config.DataDir(), "guieduc.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if err := config.WriteTemplate(path, cfg, force); err != nil {
			return err
		}
		fmt.Printf("%s Configuração escrita em %s\n", ui.RenderPass("✓"), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Mostra a configuração efetiva",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		data, err := cfg.Marshal("." + format)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "endereço (padrão: server.listen)")
	configInitCmd.Flags().BoolP("force", "f", false, "sobrescrever arquivo existente")
	configShowCmd.Flags().String("format", "yaml", "yaml ou toml")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(daemonCmd, serveCmd, configCmd)
}
