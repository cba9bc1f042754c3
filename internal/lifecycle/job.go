package lifecycle

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

// QuorumRule decides whether a job's verification is complete.
type QuorumRule func(v *state.VerificationState) bool

// MajorityQuorum requires a strict majority of assigned verifiers to have completed.
func MajorityQuorum(v *state.VerificationState) bool {
	assigned, done := 0, 0
	for i, k := range v.AssignedVerifiers {
		if k.IsZero() {
			continue
		}
		assigned++
		if v.VerifierStates[i] == state.VerificationCompleted {
			done++
		}
	}
	return assigned > 0 && done*2 > assigned
}

// UnanimousQuorum requires every assigned verifier to have completed.
func UnanimousQuorum(v *state.VerificationState) bool {
	assigned := 0
	for i, k := range v.AssignedVerifiers {
		if k.IsZero() {
			continue
		}
		assigned++
		if v.VerifierStates[i] != state.VerificationCompleted {
			return false
		}
	}
	return assigned > 0
}

// JobOutput is what a provider reports for one job.
type JobOutput struct {
	OutputTokens  uint64
	MerkleRoot    [32]byte
	OutputHash    [32]byte
	MerkleRootIV  [16]byte
	OutputHashIV  [16]byte
	OutputAccount state.MaybePubkey
}

// SubmitOutput moves j to OutputReceived, records the output and splits the
// output tokens evenly across the verifiers.
func SubmitOutput(j *state.JobRequest, out JobOutput, verifiers [state.VerifiersPerAuction]solana.PublicKey) error {
	if j.Status != state.JobWaitingForOutput {
		return auctionerr.UnexpectedRequestState.Errorf("submit output for %s job", j.Status)
	}
	if out.OutputTokens > j.MaxOutputTokens {
		return auctionerr.UnexpectedRequestState.Errorf("output %d tokens exceeds max %d", out.OutputTokens, j.MaxOutputTokens)
	}
	j.Status = state.JobOutputReceived
	j.OutputTokenCount = out.OutputTokens
	j.OutputDataAccount = out.OutputAccount
	v := &j.Verification
	v.MerkleRoot = out.MerkleRoot
	v.OutputHash = out.OutputHash
	v.MerkleRootIV = out.MerkleRootIV
	v.OutputHashIV = out.OutputHashIV
	v.AssignedVerifiers = verifiers
	v.TokenRanges = SplitRanges(out.OutputTokens)
	v.VerifierStates = [state.VerifiersPerAuction]state.JobVerificationState{}
	v.VerifiedTokens = [state.VerifiersPerAuction]uint64{}
	return nil
}

// SplitRanges divides [0, total) into contiguous per-verifier ranges; the last
// range takes the remainder.
func SplitRanges(total uint64) [state.VerifiersPerAuction * 2]uint64 {
	var out [state.VerifiersPerAuction * 2]uint64
	n := uint64(state.VerifiersPerAuction)
	chunk := total / n
	for i := uint64(0); i < n; i++ {
		out[2*i] = i * chunk
		out[2*i+1] = (i + 1) * chunk
	}
	out[2*n-1] = total
	return out
}

// Validation is one verifier's report.
type Validation struct {
	Verifier  solana.PublicKey
	Successes uint64
	Failures  uint64
}

// ValidationResult summarizes the effect of RecordValidation.
type ValidationResult struct {
	Failed   bool
	Verified bool
}

// RecordValidation applies a verifier report to j. Successes advance the
// verifier through its token range; any failure is reported without progress.
func RecordValidation(j *state.JobRequest, rep Validation, quorum QuorumRule) (ValidationResult, error) {
	if j.Status != state.JobOutputReceived {
		return ValidationResult{}, auctionerr.UnexpectedRequestState.Errorf("validate %s job", j.Status)
	}
	v := &j.Verification
	idx, ok := v.VerifierIndex(rep.Verifier)
	if !ok {
		return ValidationResult{}, auctionerr.VerifierNotAssigned.Errorf("verifier %s", rep.Verifier)
	}
	if v.VerifierStates[idx] == state.VerificationCompleted {
		return ValidationResult{}, auctionerr.UnexpectedRequestState.Errorf("verifier %d already completed", idx)
	}
	if rep.Failures > 0 {
		return ValidationResult{Failed: true}, nil
	}
	span := v.TokenRanges[2*idx+1] - v.TokenRanges[2*idx]
	v.VerifiedTokens[idx] = satAdd(v.VerifiedTokens[idx], rep.Successes)
	if v.VerifiedTokens[idx] >= span {
		v.VerifiedTokens[idx] = span
		v.VerifierStates[idx] = state.VerificationCompleted
	} else {
		v.VerifierStates[idx] = state.VerificationInProgress
	}
	if quorum == nil {
		quorum = MajorityQuorum
	}
	if quorum(v) {
		j.Status = state.JobOutputVerified
		return ValidationResult{Verified: true}, nil
	}
	return ValidationResult{}, nil
}
