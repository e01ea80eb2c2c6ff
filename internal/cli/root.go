package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/pulse/internal/control"
	"github.com/vietddude/pulse/internal/core/config"
	"github.com/vietddude/pulse/internal/core/domain"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgPath       string
	isDebug       bool
	httpPort      int
	telegramToken string
	chatIDs       []string
	statsInterval int
	sourceKind    string
	rpcURL        string
	redisURL      string
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Block stream health monitor",
	Long: `Pulse watches a block stream, exposes liveness metrics for Prometheus
and alerts Telegram chats when the stream stops advancing.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "optional YAML config file")
	flags.BoolVar(&isDebug, "debug", false, "enable debug logging")
	flags.IntVarP(&httpPort, "http-port", "p", config.DefaultHTTPPort, "port for the /metrics and /health endpoints")
	flags.StringVar(&telegramToken, "telegram-token", "", "Telegram bot token")
	flags.StringArrayVar(&chatIDs, "chat-id", nil, "Telegram chat id or @channel (repeatable)")
	flags.IntVar(&statsInterval, "stats-interval-sec", config.DefaultStatsIntervalSec, "seconds between rate samples")
	flags.StringVar(&sourceKind, "source", config.SourceRPC, "block source: rpc or redis")
	flags.StringVar(&rpcURL, "rpc-url", "", "JSON-RPC endpoint (defaults to the network's archival node)")
	flags.StringVar(&redisURL, "redis-url", "", "Redis URL for the redis source")

	for _, n := range domain.Networks {
		rootCmd.AddCommand(newNetworkCmd(n))
	}
	rootCmd.AddCommand(versionCmd)
}

func newNetworkCmd(network domain.Network) *cobra.Command {
	var height uint64

	cmd := &cobra.Command{
		Use:   network.String(),
		Short: fmt.Sprintf("Watch the %s block stream", network),
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runPulse(cmd, network, height)
		},
	}
	cmd.Flags().Uint64VarP(&height, "block-height", "b", 0, "block height to start from")
	_ = cmd.MarkFlagRequired("block-height")

	return cmd
}

func runPulse(cmd *cobra.Command, network domain.Network, height uint64) {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		setupLogging(nil)
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	applyFlags(cmd, cfg, network, height)

	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize Pulse
	app, err := control.NewPulse(*cfg)
	if err != nil {
		slog.Error("Failed to initialize Pulse", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr, err := app.Start(ctx)
	if err != nil {
		slog.Error("Failed to start Pulse", "error", err)
		os.Exit(1)
	}
	slog.Info("Serving metrics", "addr", addr.String())

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Received signal, shutting down...")
	case <-app.Done():
		slog.Error("Pulse stopped", "error", app.Err())
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		exitCode = 1
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// applyFlags overlays explicitly set flags on the file config.
func applyFlags(cmd *cobra.Command, cfg *config.AppConfig, network domain.Network, height uint64) {
	flags := cmd.Flags()

	if cfg.Source.RedisStream == config.DefaultRedisStream(cfg.Network) {
		cfg.Source.RedisStream = ""
	}
	cfg.Network = network
	cfg.BlockHeight = height

	if flags.Changed("http-port") {
		cfg.Server.Port = httpPort
	}
	if flags.Changed("telegram-token") {
		cfg.Telegram.Token = telegramToken
	}
	if flags.Changed("chat-id") {
		cfg.Telegram.ChatIDs = chatIDs
	}
	if flags.Changed("stats-interval-sec") {
		cfg.Stats.IntervalSec = statsInterval
	}
	if flags.Changed("source") {
		cfg.Source.Kind = sourceKind
	}
	if flags.Changed("rpc-url") {
		cfg.Source.RPCURL = rpcURL
	}
	if flags.Changed("redis-url") {
		cfg.Source.RedisURL = redisURL
	}
	if isDebug {
		cfg.Logging.Level = "debug"
	}

	if cfg.Source.RPCURL == "" {
		cfg.Source.RPCURL = domain.NetworkRPCURL[network]
	}
	cfg.ApplyDefaults()
}
