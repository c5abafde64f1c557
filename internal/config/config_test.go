package config

import (
	"math/big"
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Streamer.DayLength != 24*time.Hour {
		t.Errorf("Streamer.DayLength = %s, want 24h", cfg.Streamer.DayLength)
	}
	if cfg.Streamer.EpochShift != 3*time.Hour {
		t.Errorf("Streamer.EpochShift = %s, want 3h", cfg.Streamer.EpochShift)
	}
	if cfg.Streamer.RateScale.Cmp(big.NewInt(DefaultRateScale)) != 0 {
		t.Errorf("Streamer.RateScale = %s, want %d", cfg.Streamer.RateScale, int64(DefaultRateScale))
	}
	if cfg.Streamer.FeeRate.Cmp(big.NewInt(DefaultFeeRate)) != 0 {
		t.Errorf("Streamer.FeeRate = %s, want %d", cfg.Streamer.FeeRate, int64(DefaultFeeRate))
	}
	if cfg.Token.Mode != "sim" {
		t.Errorf("Token.Mode = %s, want sim", cfg.Token.Mode)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("DAY_LENGTH", "1h")
	t.Setenv("DAY_EPOCH_SHIFT", "30m")
	t.Setenv("RATE_SCALE", "1000000")
	t.Setenv("FEE_RATE", "100000")
	t.Setenv("RATE_LIMIT_FREE_TIER", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Streamer.DayLength != time.Hour {
		t.Errorf("DayLength = %s, want 1h", cfg.Streamer.DayLength)
	}
	if cfg.Streamer.EpochShift != 30*time.Minute {
		t.Errorf("EpochShift = %s, want 30m", cfg.Streamer.EpochShift)
	}
	if cfg.Streamer.RateScale.Cmp(big.NewInt(1000000)) != 0 {
		t.Errorf("RateScale = %s, want 1000000", cfg.Streamer.RateScale)
	}
	if cfg.RateLimit.FreeTier != 3 {
		t.Errorf("RateLimit.FreeTier = %d, want 3", cfg.RateLimit.FreeTier)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "fee rate above scale", key: "FEE_RATE", value: "2000000000000"},
		{name: "unknown token mode", key: "TOKEN_MODE", value: "paper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfig_ERC20RequiresEndpoint(t *testing.T) {
	os.Clearenv()
	t.Setenv("TOKEN_MODE", "erc20")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error when erc20 mode has no address/RPC")
	}
}
