package cli

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/vietddude/pulse/internal/core/config"
	"github.com/vietddude/pulse/internal/core/domain"
)

func findNetworkCmd(t *testing.T, network domain.Network) (*cobra.Command, bool) {
	t.Helper()
	for _, c := range rootCmd.Commands() {
		if c.Name() == network.String() {
			return c, true
		}
	}
	return nil, false
}

func TestRootCmd_HasNetworkSubcommands(t *testing.T) {
	for _, n := range domain.Networks {
		cmd, ok := findNetworkCmd(t, n)
		if !ok {
			t.Errorf("missing subcommand %s", n)
			continue
		}
		flag := cmd.Flags().Lookup("block-height")
		if flag == nil {
			t.Errorf("%s: missing --block-height", n)
			continue
		}
		if flag.Shorthand != "b" {
			t.Errorf("%s: expected -b shorthand, got %q", n, flag.Shorthand)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cmd, _ := findNetworkCmd(t, domain.NetworkTestnet)
	if err := cmd.ParseFlags([]string{"-b", "42", "--chat-id", "1", "--chat-id", "@ops", "-p", "9090"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	applyFlags(cmd, cfg, domain.NetworkTestnet, 42)

	if cfg.Network != domain.NetworkTestnet || cfg.BlockHeight != 42 {
		t.Errorf("unexpected network/height: %s/%d", cfg.Network, cfg.BlockHeight)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Telegram.ChatIDs) != 2 || cfg.Telegram.ChatIDs[1] != "@ops" {
		t.Errorf("unexpected chat ids: %v", cfg.Telegram.ChatIDs)
	}
	if cfg.Stats.IntervalSec != config.DefaultStatsIntervalSec {
		t.Errorf("unchanged flag must keep the default interval, got %d", cfg.Stats.IntervalSec)
	}
	if cfg.Source.RPCURL != domain.NetworkRPCURL[domain.NetworkTestnet] {
		t.Errorf("expected default testnet rpc url, got %s", cfg.Source.RPCURL)
	}
	if cfg.Source.RedisStream != "pulse:blocks:testnet" {
		t.Errorf("expected testnet stream, got %s", cfg.Source.RedisStream)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(out.String(), "pulse "+Version) {
		t.Errorf("unexpected version output: %q", out.String())
	}
}

func TestParseLevel(t *testing.T) {
	if got := parseLevel("DEBUG", slog.LevelInfo); got != slog.LevelDebug {
		t.Errorf("expected debug, got %v", got)
	}
	if got := parseLevel("loud", slog.LevelWarn); got != slog.LevelWarn {
		t.Errorf("expected fallback, got %v", got)
	}
}
