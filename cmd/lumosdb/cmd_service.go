package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumos-db/lumosdb/internal/daemon"
	"github.com/lumos-db/lumosdb/internal/restapi"
	"github.com/lumos-db/lumosdb/internal/syncengine"
	"github.com/lumos-db/lumosdb/pkg/config"
)

var (
	startPort       int
	startHost       string
	startBackground bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduled-sync daemon",
	Long:  `Start the Lumos-DB daemon, which runs the scheduled-sync background loop and, if enabled, the thin REST API.`,
	Run: func(cmd *cobra.Command, args []string) {
		runStart()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runStop()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Run: func(cmd *cobra.Command, args []string) {
		runStatus()
	},
}

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running lumosdb processes",
	Run: func(cmd *cobra.Command, args []string) {
		runPS()
	},
}

var killAllCmd = &cobra.Command{
	Use:   "kill_all",
	Short: "Kill all lumosdb processes",
	Run: func(cmd *cobra.Command, args []string) {
		runKillAll()
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(killAllCmd)

	startCmd.Flags().IntVarP(&startPort, "port", "p", 0, "REST API port (overrides config)")
	startCmd.Flags().StringVar(&startHost, "host", "", "REST API host (overrides config)")
	startCmd.Flags().BoolVarP(&startBackground, "background", "b", false, "run in background (daemonize)")
}

func getDaemon() *daemon.Daemon {
	return daemon.New(config.ConfigPath(), Version)
}

func runStart() {
	cfg := loadConfig()
	d := getDaemon()

	if d.IsRunning() {
		status := d.Status()
		fmt.Printf("lumosdb daemon is already running (PID: %d)\n", status.PID)
		fmt.Println("Use 'lumosdb stop' to stop it first")
		os.Exit(1)
	}

	if startBackground {
		args := []string{"start"}
		if startPort > 0 {
			args = append(args, "--port", fmt.Sprintf("%d", startPort))
		}
		if startHost != "" {
			args = append(args, "--host", startHost)
		}

		if _, err := d.Daemonize(args); err != nil {
			fmt.Printf("Error starting daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Starting daemon...")
		for i := 0; i < 50; i++ {
			time.Sleep(100 * time.Millisecond)
			if d.IsRunning() {
				status := d.Status()
				fmt.Printf("lumosdb daemon started (PID: %d)\n", status.PID)
				if status.RESTEnabled {
					fmt.Printf("REST API: http://%s:%d\n", status.RESTHost, status.RESTPort)
				}
				return
			}
		}
		fmt.Println("Failed to start daemon (timeout)")
		os.Exit(1)
	}

	if startPort > 0 {
		cfg.RestAPI.Port = startPort
	}
	if startHost != "" {
		cfg.RestAPI.Host = startHost
	}

	row, column := openEngines(cfg)
	defer row.Close()
	defer column.Close()

	mgr := newManagerFromConfig(row, column, cfg)
	if _, err := mgr.Init(context.Background()); err != nil {
		fmt.Printf("Warning: initial sync failed: %v\n", err)
	}

	if err := d.Start(cfg.RestAPI.Enabled, cfg.RestAPI.Host, cfg.RestAPI.Port, cfg.Sync.IntervalSeconds); err != nil {
		fmt.Printf("Warning: could not register daemon state: %v\n", err)
	}
	defer d.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived %v, shutting down...\n", sig)
		cancel()
	}()

	go runScheduledSync(ctx, mgr, time.Duration(cfg.Sync.IntervalSeconds)*time.Second)

	if !cfg.RestAPI.Enabled {
		fmt.Println("REST API is disabled in configuration; running sync loop only")
		<-ctx.Done()
		return
	}

	server := restapi.NewServer(row, column, cfg)
	fmt.Printf("Starting REST API on %s:%d\n", cfg.RestAPI.Host, cfg.RestAPI.Port)
	fmt.Println("Press Ctrl+C to stop")
	if err := server.StartWithContext(ctx, 10*time.Second); err != nil {
		fmt.Printf("Error running server: %v\n", err)
		os.Exit(1)
	}
}

// runScheduledSync is the cooperative scheduling loop of spec.md §4.6: one
// IncrementalSync pass per tick, until ctx is cancelled.
func runScheduledSync(ctx context.Context, mgr *syncengine.Manager, interval time.Duration) {
	if interval <= 0 {
		interval = config.DefaultSyncInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := mgr.IncrementalSync(ctx)
			if err != nil {
				fmt.Printf("scheduled sync failed: %v\n", err)
				continue
			}
			for table, res := range results {
				if len(res.Errors) > 0 {
					fmt.Printf("sync[%s]: %v\n", table, res.Errors)
				}
			}
		}
	}
}

func runStop() {
	d := getDaemon()
	if !d.IsRunning() {
		fmt.Println("lumosdb daemon is not running")
		return
	}
	status := d.Status()
	fmt.Printf("Stopping lumosdb daemon (PID: %d)...\n", status.PID)
	if err := d.Stop(); err != nil {
		fmt.Printf("Error stopping daemon: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Daemon stopped successfully")
}

func runStatus() {
	cfg := loadConfig()
	d := getDaemon()
	status := d.Status()

	fmt.Println("Lumos-DB Status")
	fmt.Println("===============")
	fmt.Println()

	if status.Running {
		fmt.Printf("Daemon: running (PID: %d), uptime %s\n", status.PID, status.Uptime)
		fmt.Printf("Version: %s\n", status.Version)
		if status.RESTEnabled {
			fmt.Printf("REST API: running on %s:%d\n", status.RESTHost, status.RESTPort)
		} else {
			fmt.Println("REST API: disabled")
		}
		fmt.Printf("Sync interval: %ds\n", status.SyncInterval)
	} else {
		fmt.Println("Daemon: stopped")
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Row engine: %s\n", cfg.RowEngine.Path)
	fmt.Printf("  Column engine: %s\n", cfg.ColumnEngine.Path)
}

func runPS() {
	d := getDaemon()
	processes, err := d.ListProcesses()
	if err != nil {
		fmt.Printf("Error listing processes: %v\n", err)
		os.Exit(1)
	}
	if len(processes) == 0 {
		fmt.Println("No lumosdb processes running")
		return
	}
	fmt.Println("PID\tTYPE\tUPTIME\tVERSION")
	for _, p := range processes {
		fmt.Printf("%d\t%s\t%s\t%s\n", p.PID, p.Type, p.Uptime, p.Version)
	}
}

func runKillAll() {
	d := getDaemon()
	if !d.IsRunning() {
		fmt.Println("No lumosdb processes running")
		return
	}
	killed, err := d.KillAll()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Killed %d process(es)\n", killed)
}
