package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ninout-run/ninoutgo/api"
	"github.com/ninout-run/ninoutgo/internal/profile"
	"github.com/ninout-run/ninoutgo/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "ninoutd",
	Short: `Read-only HTTP API over a ninout DAG engine run log. Serves run history, per-step metrics, and output rows to the dashboard.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:       viper.GetString("mode"),
			Addr:       viper.GetString("addr"),
			Port:       viper.GetInt("port"),
			LogsDir:    viper.GetString("logs-dir"),
			MaxWorkers: viper.GetInt("max-workers"),
		}
		instanceProfile.FromEnv()
		if v := viper.GetString("mode"); v != "" {
			instanceProfile.Mode = v
		}
		if v := viper.GetString("logs-dir"); v != "" {
			instanceProfile.LogsDir = v
		}
		if v := viper.GetString("addr"); v != "" {
			instanceProfile.Addr = v
		}
		if v := viper.GetInt("port"); v != 0 {
			instanceProfile.Port = v
		}
		if v := viper.GetInt("max-workers"); v != 0 {
			instanceProfile.MaxWorkers = v
		}
		if err := instanceProfile.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e := api.NewServer(instanceProfile.LogsDir)

		c := make(chan os.Signal, 1)
		signal.Notify(c, terminationSignals...)

		addr := fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port)
		go func() {
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start api server", "error", err)
				cancel()
			}
		}()

		printGreetings(instanceProfile)

		go func() {
			<-c
			shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
			defer shutdownCancel()
			_ = e.Shutdown(shutdownCtx)
			cancel()
		}()

		<-ctx.Done()
		return nil
	},
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("port", 8090)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod", "dev", or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address to bind the read API to")
	rootCmd.PersistentFlags().Int("port", 8090, "port to bind the read API to")
	rootCmd.PersistentFlags().String("logs-dir", "", "run log directory (default: ./logs)")
	rootCmd.PersistentFlags().Int("max-workers", 0, "scheduler worker pool size (0: one per logical core)")

	for _, name := range []string{"mode", "addr", "port", "logs-dir", "max-workers"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("ninout")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ninoutd version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.StringFull())
	},
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("ninoutd %s started successfully!\n", version.GetCurrentVersion(p.Mode))
	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
	fmt.Printf("Logs directory: %s\n", p.LogsDir)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.Addr == "" {
		fmt.Printf("Read API running on port %d\n", p.Port)
		fmt.Printf("Access it at: http://localhost:%d/api/runs\n", p.Port)
	} else {
		fmt.Printf("Read API running on %s:%d\n", p.Addr, p.Port)
	}
	fmt.Println("\nWaiting for runs...")
}

func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
