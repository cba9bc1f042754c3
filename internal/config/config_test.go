package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/bundlebid/internal/state"
	"github.com/danmuck/bundlebid/internal/testutil/testlog"
	"github.com/gagliardetto/solana-go"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundlebid.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplatesLoad(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{KindMemory, KindSQLite} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s template: %v", kind, err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load %s template: %v", kind, err)
		}
		if cfg.Ledger.Driver != kind || cfg.Sim.Jobs != 21 || cfg.MinimumBundleAuctionPairs != 2 {
			t.Fatalf("unexpected %s config %+v", kind, cfg)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("expected existing %s config kept", kind)
		}
	}
	if _, err := Template("postgres"); err == nil {
		t.Fatalf("expected unknown kind refused")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, "[sim]\njobs = 40\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sim.Jobs != 40 || cfg.Sim.Bidders != 3 || cfg.Quorum != QuorumMajority || cfg.Ledger.Driver != "memory" {
		t.Fatalf("expected defaults around the override, got %+v", cfg)
	}
	sc, err := cfg.Scenario()
	if err != nil || sc.Jobs != 40 || sc.Context != state.TierEco || sc.Pairs != 2 {
		t.Fatalf("unexpected scenario %+v %v", sc, err)
	}
	opts, err := cfg.ProcessorOptions()
	if err != nil || !opts.ProgramID.IsZero() || opts.MinimumPairs != 2 || opts.Commitments == nil {
		t.Fatalf("unexpected options %+v %v", opts, err)
	}
}

func TestLoadRejects(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"unknown key":  "colour = \"red\"\n",
		"zero pairs":   "minimum_bundle_auction_pairs = 0\n",
		"quorum":       "quorum = \"most\"\n",
		"level":        "[log]\nlevel = \"loud\"\n",
		"driver":       "[ledger]\ndriver = \"postgres\"\n",
		"sqlite path":  "[ledger]\ndriver = \"sqlite\"\n",
		"tier":         "[sim]\ncontext = \"ultra\"\n",
		"program id":   "program_id = \"abc\"\n",
		"sim pairs":    "minimum_bundle_auction_pairs = 3\n",
		"syntax":       "[sim\n",
		"zero price":   "[sim]\nmax_price = 0\n",
		"negative job": "[sim]\njobs = -1\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("expected %s rejected", name)
		}
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, fs.ErrNotExist) || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestProgramIDAndQuorum(t *testing.T) {
	testlog.Start(t)
	want := solana.VoteProgramID
	cfg, err := Load(writeConfig(t, "program_id = \""+want.String()+"\"\nquorum = \"unanimous\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opts, err := cfg.ProcessorOptions()
	if err != nil || !opts.ProgramID.Equals(want) {
		t.Fatalf("expected program id %s, got %s %v", want, opts.ProgramID, err)
	}
	if _, err := ParseKey("1111"); err == nil {
		t.Fatalf("expected short key refused")
	}
}
