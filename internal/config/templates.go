package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindMemory:
		return memoryTemplate, nil
	case KindSQLite:
		return sqliteTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const simSection = `
# one market round: requests fill bundles of 20, every full bundle is auctioned
[sim]
context = "eco"        # eco | standard | pro
expiry = "eco"
jobs = 21
bidders = 3
pairs = 2              # bundle/auction pairs sent with each request
input_tokens = 1000
output_tokens = 300
max_price = 100
input_bytes = 0        # > 0 stages inputs through append_data
`

const memoryTemplate = `# program_id = "<base58>"   # empty uses the built-in program id
minimum_bundle_auction_pairs = 2
quorum = "majority"    # majority | unanimous

[log]
level = "info"

[ledger]
driver = "memory"
` + simSection

const sqliteTemplate = `# program_id = "<base58>"   # empty uses the built-in program id
minimum_bundle_auction_pairs = 2
quorum = "majority"    # majority | unanimous

[log]
level = "info"

[ledger]
driver = "sqlite"
path = "bundlebid.db"
` + simSection
