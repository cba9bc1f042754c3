package protocol

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/gagliardetto/solana-go"
)

// Role describes one account position.
type Role struct {
	Name     string
	Writable bool
	Signer   bool
}

func role(name string, writable, signer bool) Role {
	return Role{Name: name, Writable: writable, Signer: signer}
}

var roleTable = map[Opcode][]Role{
	OpRequestJob: {
		role("payer", true, true), role("job_request", true, false), role("registry", true, false),
		role("input_data", true, false), role("system_program", false, false), role("config", false, false),
	},
	OpPlaceBid: {
		role("bid_authority", true, true), role("bid", true, false), role("auction", true, false),
		role("bundle", false, false), role("system_program", false, false),
	},
	OpEndAuction: {
		role("auction", true, false), role("bundle", true, false), role("vote_account", true, false), role("payer", true, true),
	},
	OpCloseBid: {
		role("bid_authority", true, true), role("bid", true, false), role("auction_payer", true, false),
		role("auction", true, false), role("bundle", true, false), role("vote_account", true, false),
		role("vote_authority", false, true), role("vote_program", false, false),
	},
	OpSubmitJobOutput: {
		role("bid_authority", false, true), role("bundle", true, false), role("job_request", true, false),
		role("bid", false, false), role("auction", false, false), role("output_data_account", true, false),
	},
	OpCancelBundle: {
		role("payer", true, true), role("bundle", true, false), role("child_bundle", true, false),
		role("registry", true, false), role("system_program", false, false),
	},
	OpInitBundle: {
		role("payer", true, true), role("bundle", true, false), role("registry", true, false), role("system_program", false, false),
	},
	OpSubmitValidation: {
		role("bundle", true, false), role("vote_account", true, false), role("vote_program", false, false),
		role("vote_authority", false, true), role("job_request", true, false),
	},
	OpRevealBid: {
		role("bid_authority", false, true), role("bid", true, false), role("auction", true, false),
		role("bundle", false, false), role("vote_account", true, false), role("vote_authority", false, true),
	},
	OpCloseRequest: {
		role("request_authority", true, true), role("job_request", true, false),
		role("bundle_payer", true, false), role("bundle", true, false),
	},
	OpAppendData: {
		role("data_authority", true, true), role("data_account", true, false), role("system_program", false, false),
	},
	OpInitConfig: {
		role("payer", true, true), role("config", true, false), role("system_program", false, false),
	},
}

// RequestJob roles after the fixed prefix.
var (
	pairBundleRole  = role("bundle", true, false)
	pairAuctionRole = role("auction", true, false)
	lastBundleRole  = role("last_bundle", true, false)
)

// Roles returns the fixed account positions for op. RequestJob additionally
// takes repeated (bundle, auction) pairs and a trailing last_bundle.
func Roles(op Opcode) ([]Role, bool) {
	roles, ok := roleTable[op]
	if !ok || !op.Enabled() {
		return nil, false
	}
	return append([]Role(nil), roles...), true
}

// RolesFor expands the role list to n accounts.
func RolesFor(op Opcode, n int) ([]Role, error) {
	roles, ok := Roles(op)
	if !ok {
		return nil, auctionerr.UnknownInstruction.Errorf("roles: %s", op)
	}
	if op != OpRequestJob {
		if n < len(roles) {
			return nil, auctionerr.NotEnoughAccounts.Errorf("%s: expected %d accounts, got %d", op, len(roles), n)
		}
		// trailing extras on at-least lists are read-only passthrough
		for i := len(roles); i < n; i++ {
			roles = append(roles, role("extra", false, false))
		}
		return roles, nil
	}
	middle := n - RequestJobPrefix - 1
	if middle < 0 || middle%2 != 0 {
		return nil, auctionerr.NotEnoughBundleAuctionAccounts.Errorf("%s: %d accounts", op, n)
	}
	for i := 0; i < middle; i += 2 {
		roles = append(roles, pairBundleRole, pairAuctionRole)
	}
	return append(roles, lastBundleRole), nil
}

// BuildInstruction assembles a solana-go instruction for the program.
func BuildInstruction(programID solana.PublicKey, ins Instruction, keys []solana.PublicKey) (*solana.GenericInstruction, error) {
	data, err := Encode(ins)
	if err != nil {
		return nil, err
	}
	op := ins.Args.Opcode()
	roles, err := RolesFor(op, len(keys))
	if err != nil {
		return nil, err
	}
	if op != OpRequestJob && op != OpCloseBid && op != OpSubmitValidation && len(keys) != len(roleTable[op]) {
		return nil, auctionerr.NotEnoughAccounts.Errorf("%s: expected %d accounts, got %d", op, len(roleTable[op]), len(keys))
	}
	metas := make(solana.AccountMetaSlice, 0, len(keys))
	for i, k := range keys {
		metas = append(metas, solana.NewAccountMeta(k, roles[i].Writable, roles[i].Signer))
	}
	return solana.NewInstruction(programID, metas, data), nil
}
