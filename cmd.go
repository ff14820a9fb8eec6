package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "0.1.0" // set during build with -ldflags
	config  *Config
)

var rootCmd = &cobra.Command{
	Use:   "nimbuskv-server",
	Short: "nimbuskv - single-node in-memory key/value server",
	Long: `nimbuskv is a single-node, in-memory key/value server speaking a
compact binary request/response protocol over TCP.

It keeps a closed set of value types (strings and lists), supports
per-key TTLs with both passive and active expiration, and enforces an
optional memory ceiling with admission control on writes.`,
	Version: version,
	RunE:    runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	var err error
	config, err = LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("Starting nimbuskv-server v%s\n", version)
	fmt.Println(config.String())
	fmt.Println(strings.Repeat("=", 51))

	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := server.Start(); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	<-sigChan
	fmt.Println("\nshutting down nimbuskv-server...")

	if err := server.Stop(); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	fmt.Println("nimbuskv-server stopped")

	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := LoadConfig()
		if err != nil {
			return err
		}
		fmt.Println("nimbuskv configuration:")
		fmt.Println(strings.Repeat("=", 31))
		fmt.Printf("Host: %s\n", config.Host)
		fmt.Printf("Port: %d\n", config.Port)
		fmt.Printf("Max Memory: %s\n", config.MaxMemory)
		fmt.Printf("Max Connections: %d\n", config.MaxConnections)
		fmt.Printf("Idle Timeout: %v\n", config.IdleTimeout)
		fmt.Printf("Tick Sleep: %v\n", config.TickSleep)
		fmt.Printf("Fast Expiry Interval: %v\n", config.FastExpiryInterval)
		fmt.Printf("Slow Expiry Interval: %v\n", config.SlowExpiryInterval)
		fmt.Printf("Sample Size: %d\n", config.SampleSize)
		fmt.Printf("Fast Expire Budget: %v\n", config.FastExpireBudget)
		fmt.Printf("Slow Expire Budget: %v\n", config.SlowExpireBudget)
		fmt.Printf("Hit Rate Threshold: %.2f\n", config.HitRateThreshold)
		fmt.Printf("Log Level: %s\n", config.LogLevel)
		fmt.Printf("Log Format: %s\n", config.LogFormat)
		fmt.Printf("TCP Keep-Alive: %t\n", config.TCPKeepAlive)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nimbuskv-server v%s\n", version)
		fmt.Printf("Built with Go %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("host", "H", "127.0.0.1", "Host to bind to")
	rootCmd.PersistentFlags().IntP("port", "p", 6379, "Port to listen on")
	rootCmd.PersistentFlags().String("max-memory", "0", "Maximum memory to use, 0 for unlimited (e.g., 512MB, 2GB)")
	rootCmd.PersistentFlags().Int("max-connections", 10000, "Maximum number of concurrent connections")
	rootCmd.PersistentFlags().Duration("idle-timeout", 0, "Close connections idle longer than this, 0 to disable")
	rootCmd.PersistentFlags().Duration("tick-sleep", time.Millisecond, "Event loop tick sleep duration")
	rootCmd.PersistentFlags().Duration("fast-expiry-interval", 10*time.Millisecond, "Interval between fast active-expiration cycles")
	rootCmd.PersistentFlags().Duration("slow-expiry-interval", 200*time.Millisecond, "Interval between slow active-expiration cycles")
	rootCmd.PersistentFlags().Int("sample-size", 20, "Keys sampled per active-expiration iteration")
	rootCmd.PersistentFlags().Duration("fast-expire-budget", time.Millisecond, "Time budget for a fast active-expiration cycle")
	rootCmd.PersistentFlags().Duration("slow-expire-budget", 25*time.Millisecond, "Time budget for a slow active-expiration cycle")
	rootCmd.PersistentFlags().Float64("hit-rate-threshold", 0.25, "Stop an active-expiration cycle early below this hit rate")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("tcp-keepalive", true, "Enable TCP keep-alive")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("max_memory", rootCmd.PersistentFlags().Lookup("max-memory"))
	viper.BindPFlag("max_connections", rootCmd.PersistentFlags().Lookup("max-connections"))
	viper.BindPFlag("idle_timeout", rootCmd.PersistentFlags().Lookup("idle-timeout"))
	viper.BindPFlag("tick_sleep", rootCmd.PersistentFlags().Lookup("tick-sleep"))
	viper.BindPFlag("fast_expiry_interval", rootCmd.PersistentFlags().Lookup("fast-expiry-interval"))
	viper.BindPFlag("slow_expiry_interval", rootCmd.PersistentFlags().Lookup("slow-expiry-interval"))
	viper.BindPFlag("sample_size", rootCmd.PersistentFlags().Lookup("sample-size"))
	viper.BindPFlag("fast_expire_budget", rootCmd.PersistentFlags().Lookup("fast-expire-budget"))
	viper.BindPFlag("slow_expire_budget", rootCmd.PersistentFlags().Lookup("slow-expire-budget"))
	viper.BindPFlag("hit_rate_threshold", rootCmd.PersistentFlags().Lookup("hit-rate-threshold"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("tcp_keepalive", rootCmd.PersistentFlags().Lookup("tcp-keepalive"))

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute is the CLI's main entry point.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
