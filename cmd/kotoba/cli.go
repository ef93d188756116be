package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kotoba-dev/kotoba/internal/auth"
	"github.com/kotoba-dev/kotoba/internal/config"
	"github.com/kotoba-dev/kotoba/internal/export"
	"github.com/kotoba-dev/kotoba/internal/obs"
	"github.com/kotoba-dev/kotoba/internal/server"
	"github.com/kotoba-dev/kotoba/internal/store"
)

// Build information, set by the compiler via -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

var (
	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "kotoba",
	Short: "Kotoba - Japanese translation assistant server",
	Long: `Kotoba is a chat-based Japanese translation assistant. It serves an HTTP
API that streams structured translation records, with word-level
breakdowns and grammar notes, from a configured LLM provider.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	fs.StringVar(&configDir, "config-dir", "", "configuration directory (default: ~/.kotoba)")
}

func loadConfig() (*config.Config, error) {
	if configDir != "" {
		return config.NewConfig(config.WithConfigDir(configDir))
	}
	return config.NewConfig()
}

func startCommand() *cobra.Command {
	var openUI bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Kotoba server",
		Long: `Start the Kotoba HTTP server. Chat responses stream back as server-sent
events while the translation record is decoded incrementally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			snap := cfg.Snapshot()
			obs.SetupLogging(verbose, snap.Log)
			server.Version = version

			metrics, err := obs.SetupMetrics(cmd.Context(), snap.Metrics)
			if err != nil {
				return err
			}

			st, err := store.NewStore(cfg.DataDir())
			if err != nil {
				return err
			}
			defer st.Close()

			srv, err := server.New(cfg, st, metrics)
			if err != nil {
				return err
			}

			if openUI {
				url := fmt.Sprintf("http://127.0.0.1:%d/healthz", snap.ServerPort)
				go func() {
					time.Sleep(500 * time.Millisecond)
					if err := browser.OpenURL(url); err != nil {
						logrus.Warnf("opening browser: %v", err)
					}
				}()
			}

			// Graceful shutdown on SIGINT/SIGTERM.
			stopCh := make(chan os.Signal, 1)
			signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case sig := <-stopCh:
				logrus.Infof("received %s, shutting down", sig)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			return metrics.Shutdown(ctx)
		},
	}

	cmd.Flags().BoolVar(&openUI, "open", false, "open the server URL in a browser after start")
	return cmd
}

func tokenCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an API token for the chat API",
		Long: `Generate a signed bearer token for the chat API. A signing secret is
created and saved on first use. When a control password is set (see
'kotoba passwd'), it must be supplied via --password. Include the token
in requests as 'Authorization: Bearer <token>'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if hash := cfg.Snapshot().ControlPasswordHash; hash != "" {
				if !auth.CheckPassword(hash, password) {
					return fmt.Errorf("control password is incorrect or missing, pass it with --password")
				}
			}

			if cfg.Snapshot().JWTSecret == "" {
				secret := make([]byte, 32)
				if _, err := rand.Read(secret); err != nil {
					return fmt.Errorf("generating signing secret: %w", err)
				}
				cfg.JWTSecret = hex.EncodeToString(secret)
				if err := cfg.Save(); err != nil {
					return err
				}
				logrus.Info("generated new JWT signing secret")
			}

			token, err := auth.NewJWTManager(cfg.Snapshot().JWTSecret).GenerateToken("cli")
			if err != nil {
				return err
			}

			fmt.Println(token)
			fmt.Println()
			fmt.Println("Usage in API requests:")
			fmt.Println("Authorization: Bearer", token)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "control password, required once one is set")
	return cmd
}

func passwdCommand() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "passwd <password>",
		Short: "Set the control password gating token generation",
		Long: `Set a control password that must accompany future 'kotoba token' runs.
Only a bcrypt hash of the password is stored in the config file. Use
--clear to remove the password.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if clear {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if clear {
				cfg.ControlPasswordHash = ""
				if err := cfg.Save(); err != nil {
					return err
				}
				fmt.Println("Control password removed.")
				return nil
			}

			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			cfg.ControlPasswordHash = hash
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Println("Control password set.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "remove the control password")
	return cmd
}

func exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <dest-dir>",
		Short: "Export config and session data to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return export.Export(cfg, args[0])
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Kotoba\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Git Commit: %s\n", gitCommit)
			fmt.Printf("Build Time: %s\n", buildTime)
		},
	}
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(startCommand())
	rootCmd.AddCommand(tokenCommand())
	rootCmd.AddCommand(passwdCommand())
	rootCmd.AddCommand(exportCommand())
	rootCmd.AddCommand(versionCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
