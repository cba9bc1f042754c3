package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/bundlebid/internal/ledger"
	"github.com/danmuck/bundlebid/internal/logging"
	"github.com/danmuck/bundlebid/internal/state"
)

type Program struct {
	ProgramID                 string       `toml:"program_id"`
	MinimumBundleAuctionPairs uint64       `toml:"minimum_bundle_auction_pairs"`
	Quorum                    string       `toml:"quorum"`
	Log                       LogConfig    `toml:"log"`
	Ledger                    LedgerConfig `toml:"ledger"`
	Sim                       SimConfig    `toml:"sim"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type LedgerConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type SimConfig struct {
	Context      string `toml:"context"`
	Expiry       string `toml:"expiry"`
	Jobs         int    `toml:"jobs"`
	Bidders      int    `toml:"bidders"`
	Pairs        int    `toml:"pairs"`
	InputTokens  uint64 `toml:"input_tokens"`
	OutputTokens uint64 `toml:"output_tokens"`
	MaxPrice     uint64 `toml:"max_price"`
	InputBytes   int    `toml:"input_bytes"`
}

const (
	QuorumMajority  = "majority"
	QuorumUnanimous = "unanimous"
)

// Default is the configuration used for any key a file leaves out.
func Default() Program {
	return Program{
		MinimumBundleAuctionPairs: state.MinimumBundleAuctionPairs,
		Quorum:                    QuorumMajority,
		Log:                       LogConfig{Level: "info"},
		Ledger:                    LedgerConfig{Driver: ledger.DriverMemory},
		Sim: SimConfig{
			Context:      state.TierEco.String(),
			Expiry:       state.TierEco.String(),
			Jobs:         state.RequestsPerBundle + 1,
			Bidders:      3,
			Pairs:        state.MinimumBundleAuctionPairs,
			InputTokens:  1_000,
			OutputTokens: 300,
			MaxPrice:     100,
		},
	}
}

func Load(path string) (Program, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Program{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Program{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Program{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := Validate(cfg); err != nil {
		return Program{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Program) error {
	if strings.TrimSpace(cfg.ProgramID) != "" {
		if _, err := ParseKey(cfg.ProgramID); err != nil {
			return fmt.Errorf("program_id: %w", err)
		}
	}
	if cfg.MinimumBundleAuctionPairs == 0 {
		return fmt.Errorf("minimum_bundle_auction_pairs must be at least 1")
	}
	switch cfg.Quorum {
	case QuorumMajority, QuorumUnanimous:
	default:
		return fmt.Errorf("quorum %q must be %s or %s", cfg.Quorum, QuorumMajority, QuorumUnanimous)
	}
	if !logging.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log level %q is not recognized", cfg.Log.Level)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Ledger.Driver)) {
	case ledger.DriverMemory:
	case ledger.DriverSQLite:
		if strings.TrimSpace(cfg.Ledger.Path) == "" {
			return fmt.Errorf("ledger path required for the sqlite driver")
		}
	default:
		return fmt.Errorf("ledger driver %q must be %s or %s", cfg.Ledger.Driver, ledger.DriverMemory, ledger.DriverSQLite)
	}
	if err := ValidateSim(cfg.Sim); err != nil {
		return fmt.Errorf("sim invalid: %w", err)
	}
	if uint64(cfg.Sim.Pairs) < cfg.MinimumBundleAuctionPairs {
		return fmt.Errorf("sim pairs %d below minimum_bundle_auction_pairs %d", cfg.Sim.Pairs, cfg.MinimumBundleAuctionPairs)
	}
	return nil
}

func ValidateSim(cfg SimConfig) error {
	if _, ok := state.ParseTier(cfg.Context); !ok {
		return fmt.Errorf("context tier %q is not one of eco, standard, pro", cfg.Context)
	}
	if _, ok := state.ParseTier(cfg.Expiry); !ok {
		return fmt.Errorf("expiry tier %q is not one of eco, standard, pro", cfg.Expiry)
	}
	if cfg.Jobs < 0 || cfg.Bidders < 0 || cfg.InputBytes < 0 {
		return fmt.Errorf("jobs, bidders and input_bytes must not be negative")
	}
	if cfg.Pairs < 1 {
		return fmt.Errorf("pairs must be at least 1")
	}
	if cfg.MaxPrice == 0 {
		return fmt.Errorf("max_price must be positive")
	}
	return nil
}
