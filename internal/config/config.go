// Package config assembles the one root Config struct every binary
// loads at startup and passes explicitly into constructors (no
// module-level singletons). YAML-first with environment overrides,
// grounded on the teacher's internal/infrastructure/db/config.go
// (LoadAppConfig/applyEnvOverrides pattern) and internal/config/
// guards.go (LoadGuardsConfig's yaml.Unmarshal shape).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sentrychain/pulse/internal/store/postgres"
)

// Config is the root configuration document, assembled once at
// process startup and threaded explicitly through every constructor.
type Config struct {
	LogLevel string `yaml:"log_level" env:"PULSE_LOG_LEVEL"`
	Window   string `yaml:"window" env:"PULSE_WINDOW"`

	Chain      ChainSection      `yaml:"chain"`
	Postgres   postgres.Config   `yaml:"postgres"`
	Redis      RedisSection      `yaml:"redis"`
	Cache      CacheSection      `yaml:"cache"`
	Orchestrator OrchestratorSection `yaml:"orchestrator"`
	Gates      GatesSection      `yaml:"gates"`
	Lifecycle  LifecycleSection  `yaml:"lifecycle"`
}

// ChainSection configures the chainkit EVM adapter.
type ChainSection struct {
	ChainID      int64    `yaml:"chain_id" env:"PULSE_CHAIN_ID"`
	RPCURLs      []string `yaml:"rpc_urls" env:"PULSE_RPC_URLS"` // comma-separated in env form
	NativeSymbol string   `yaml:"native_symbol" env:"PULSE_NATIVE_SYMBOL"`
	Decimals     int      `yaml:"decimals" env:"PULSE_NATIVE_DECIMALS"`
	Explorer     string   `yaml:"explorer" env:"PULSE_EXPLORER_URL"`
	MaxRetries   int      `yaml:"max_retries" env:"PULSE_RPC_MAX_RETRIES"`
	MaxBackoff   time.Duration `yaml:"max_backoff" env:"PULSE_RPC_MAX_BACKOFF"`
	RateRPS      float64  `yaml:"rate_rps" env:"PULSE_RPC_RATE_RPS"`
	RateBurst    int      `yaml:"rate_burst" env:"PULSE_RPC_RATE_BURST"`

	// TrackedTokens are the ERC-20 contract addresses the ingest job
	// scans for Transfer logs every cycle (spec §4 "environment inputs:
	// per-chain RPC lists").
	TrackedTokens []string `yaml:"tracked_tokens" env:"PULSE_TRACKED_TOKENS"`
	// Confirmations is the head lag kept between the chain head and the
	// block under consideration (spec §4: "CONFIRMATIONS blocks, default 12").
	Confirmations int `yaml:"confirmations" env:"PULSE_CONFIRMATIONS"`
	// RewindBlocks re-scans this many blocks behind the last cursor each
	// cycle to cover micro-reorgs (spec §4: "REWIND_BLOCKS, default 25").
	RewindBlocks int `yaml:"rewind_blocks" env:"PULSE_REWIND_BLOCKS"`
}

// RedisSection configures the remote cache tier's connection.
type RedisSection struct {
	Addr     string `yaml:"addr" env:"PULSE_REDIS_ADDR"`
	Password string `yaml:"password" env:"PULSE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"PULSE_REDIS_DB"`
	TLS      bool   `yaml:"tls" env:"PULSE_REDIS_TLS"`
}

// CacheSection configures the tiered cache's local layer and TTLs.
type CacheSection struct {
	MaxLocalEntries int           `yaml:"max_local_entries" env:"PULSE_CACHE_MAX_LOCAL_ENTRIES"`
	RawTTL          time.Duration `yaml:"raw_ttl" env:"PULSE_CACHE_RAW_TTL"`
	CalibratedTTL   time.Duration `yaml:"calibrated_ttl" env:"PULSE_CACHE_CALIBRATED_TTL"`
}

// OrchestratorSection configures job-lock lifetime and shutdown draining.
type OrchestratorSection struct {
	LockTTL           time.Duration `yaml:"lock_ttl" env:"PULSE_LOCK_TTL"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"PULSE_LOCK_HEARTBEAT"`
	ShutdownGrace     time.Duration `yaml:"shutdown_grace" env:"PULSE_SHUTDOWN_GRACE"`
}

// GatesSection configures the ranking engine's trade gate thresholds.
type GatesSection struct {
	MinCoverageToTrade   float64 `yaml:"min_coverage_to_trade" env:"PULSE_GATE_MIN_COVERAGE"`
	MinEvidenceToTrade   float64 `yaml:"min_evidence_to_trade" env:"PULSE_GATE_MIN_EVIDENCE"`
	MaxRiskToTrade       float64 `yaml:"max_risk_to_trade" env:"PULSE_GATE_MAX_RISK"`
	MinDirectionStrength float64 `yaml:"min_direction_strength" env:"PULSE_GATE_MIN_DIRECTION"`
}

// LifecycleSection configures the lifecycle state machine's thresholds.
// ConfidenceDropThreshold is the canonical, lower of the two thresholds
// documented in spec §9's Open Question (40, not the deprecated 50);
// DeprecatedConfidenceDropThreshold exists only so Validate can detect
// an operator still pointing config at the old value and surface it.
type LifecycleSection struct {
	ConfidenceDropThreshold           int `yaml:"confidence_drop_threshold" env:"PULSE_LIFECYCLE_CONFIDENCE_DROP"`
	DeprecatedConfidenceDropThreshold int `yaml:"deprecated_confidence_drop_threshold" env:"PULSE_LIFECYCLE_CONFIDENCE_DROP_DEPRECATED"`
	MaxMissedSnapshots                int `yaml:"max_missed_snapshots" env:"PULSE_LIFECYCLE_MAX_MISSED"`
}

// Default returns the canonical defaults for every section.
func Default() Config {
	return Config{
		LogLevel: "info",
		Window:   "1h", // must be one of kernel.Window's enumerated labels
		Chain: ChainSection{
			MaxRetries: 3,
			MaxBackoff: 30 * time.Second,
			RateRPS:    5,
			RateBurst:  10,
			Decimals:   18,
			Confirmations: 12,
			RewindBlocks:  25,
		},
		Postgres: postgres.DefaultConfig(),
		Redis: RedisSection{
			Addr: "localhost:6379",
		},
		Cache: CacheSection{
			MaxLocalEntries: 10_000,
			RawTTL:          5 * time.Minute,
			CalibratedTTL:   30 * time.Minute,
		},
		Orchestrator: OrchestratorSection{
			LockTTL:           30 * time.Second,
			HeartbeatInterval: 10 * time.Second,
			ShutdownGrace:     15 * time.Second,
		},
		Gates: GatesSection{
			MinCoverageToTrade:   60,
			MinEvidenceToTrade:   65,
			MaxRiskToTrade:       60,
			MinDirectionStrength: 20,
		},
		Lifecycle: LifecycleSection{
			ConfidenceDropThreshold:           40,
			DeprecatedConfidenceDropThreshold: 50,
			MaxMissedSnapshots:                3,
		},
	}
}

// Load reads path (if non-empty and present) as YAML over the defaults,
// then applies environment overrides, matching the teacher's
// LoadAppConfig: file first, environment wins.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides mirrors internal/infrastructure/db/config.go's
// applyEnvOverrides: explicit os.Getenv reads per field rather than
// reflection over the env struct tags, so the tags stay documentation
// for operators grepping the struct while the override logic stays
// a plain, readable function. Only the variables read below are
// applied; the env tags on every other field (rate limits, cache,
// orchestrator, gates, Redis TLS, the deprecated lifecycle threshold,
// the remaining Postgres settings) are not read.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PULSE_WINDOW"); v != "" {
		cfg.Window = v
	}

	if v := os.Getenv("PULSE_CHAIN_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Chain.ChainID = n
		}
	}
	if v := os.Getenv("PULSE_RPC_URLS"); v != "" {
		cfg.Chain.RPCURLs = splitCommaList(v)
	}
	if v := os.Getenv("PULSE_RPC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chain.MaxRetries = n
		}
	}
	if v := os.Getenv("PULSE_RPC_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Chain.MaxBackoff = d
		}
	}
	if v := os.Getenv("PULSE_TRACKED_TOKENS"); v != "" {
		cfg.Chain.TrackedTokens = splitCommaList(v)
	}
	if v := os.Getenv("PULSE_CONFIRMATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chain.Confirmations = n
		}
	}
	if v := os.Getenv("PULSE_REWIND_BLOCKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chain.RewindBlocks = n
		}
	}

	if v := os.Getenv("PG_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("PG_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}

	if v := os.Getenv("PULSE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PULSE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PULSE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	if v := os.Getenv("PULSE_LIFECYCLE_CONFIDENCE_DROP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Lifecycle.ConfidenceDropThreshold = n
		}
	}
}

func splitCommaList(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
