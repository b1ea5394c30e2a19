package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/applaunch/internal/config"
	"github.com/user/applaunch/internal/session"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	var (
		configPath   string
		port         int
		noBrowser    bool
		waitTimeout  int
		waitStrategy string
	)

	rootCmd := &cobra.Command{
		Use:   "applaunch",
		Short: "Start the backend service and open a browser window at it",
		Long: `applaunch starts the configured backend service, waits until its
port accepts connections, opens a dedicated browser window pointed at it,
and keeps the session alive until interrupted. On shutdown the backend is
terminated so no orphaned process is left behind.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}

			// Flags win over file and environment values.
			if cmd.Flags().Changed("port") {
				cfg.Service.Port = port
			}
			if cmd.Flags().Changed("no-browser") {
				cfg.NoBrowser = noBrowser
			}
			if cmd.Flags().Changed("wait-timeout") {
				cfg.Readiness.MaxWait = config.Duration(time.Duration(waitTimeout) * time.Second)
			}
			if cmd.Flags().Changed("wait-strategy") {
				cfg.Readiness.Strategy = waitStrategy
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return session.New(cfg).Run(ctx)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	rootCmd.Flags().IntVar(&port, "port", 0, "backend listen port (overrides config and PORT)")
	rootCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "start the backend without opening a browser")
	rootCmd.Flags().IntVar(&waitTimeout, "wait-timeout", 0, "readiness wait limit in seconds")
	rootCmd.Flags().StringVar(&waitStrategy, "wait-strategy", "", "readiness strategy: poll or delay")

	if err := rootCmd.Execute(); err != nil {
		code := session.ExitCode(err)
		if code == session.ExitUsage {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			log.Printf("session failed: %v", err)
		}
		os.Exit(code)
	}
}
