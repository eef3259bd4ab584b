package models

import "time"

// MatchStatus is the terminal classification of one claim
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusUnmatched MatchStatus = "unmatched"
	MatchStatusFailed    MatchStatus = "failed"
)

// Unmatch reasons. These strings are part of the engine's contract and are
// persisted to the audit trail, so they must stay stable.
const (
	UnmatchReasonMissingNameOrDate = "missing name or date"
	UnmatchReasonNoCandidate       = "no candidate"
)

// MatchScores is the audit breakdown retained with every decision.
type MatchScores struct {
	ClaimNameRaw        string  `json:"claim_name_raw"`
	ClaimNameNormalized string  `json:"claim_name_normalized"`
	OrderNameRaw        string  `json:"order_name_raw,omitempty"`
	OrderNameNormalized string  `json:"order_name_normalized,omitempty"`
	TokenSortScore      int     `json:"token_sort_score"`
	TokenSetScore       int     `json:"token_set_score"`
	CompositeScore      float64 `json:"composite_score"`
	CPTOverlapCount     *int    `json:"cpt_overlap_count"`
	CandidateCount      int     `json:"candidate_count"`
}

// MatchResult is the engine's terminal output for one claim: either a match
// with the enrichment identifiers, or an unmatched classification with its
// reason. Scores are retained for the audit trail on both outcomes.
type MatchResult struct {
	Status                MatchStatus  `json:"status"`
	Reason                string       `json:"reason,omitempty"`
	OrderID               string       `json:"order_id,omitempty"`
	FileMakerRecordNumber string       `json:"filemaker_record_number,omitempty"`
	Scores                *MatchScores `json:"scores,omitempty"`
}

// Matched reports whether the result carries an order.
func (r *MatchResult) Matched() bool {
	return r.Status == MatchStatusMatched
}

// RecordOutcome is the per-claim element of a batch report. A processing
// fault is captured here instead of aborting the batch.
type RecordOutcome struct {
	ClaimID string       `json:"claim_id,omitempty"`
	Claim   *ClaimRecord `json:"claim,omitempty"`
	Result  *MatchResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// BatchReport aggregates the outcomes of one batch run.
type BatchReport struct {
	BatchID          string          `json:"batch_id"`
	Total            int             `json:"total"`
	Matched          int             `json:"matched"`
	Unmatched        int             `json:"unmatched"`
	Failed           int             `json:"failed"`
	UnmatchedReasons map[string]int  `json:"unmatched_reasons,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	DurationMS       int64           `json:"duration_ms"`
	Outcomes         []RecordOutcome `json:"outcomes"`
}

// MatchClaimRequest is the synchronous match API payload. An incomplete
// claim is not a request error; the engine reports it as unmatched.
type MatchClaimRequest struct {
	Claim ClaimRecord `json:"claim"`
}

// MatchBatchRequest is the batch match API payload.
type MatchBatchRequest struct {
	BatchID string        `json:"batch_id" validate:"omitempty,max=128"`
	Claims  []ClaimRecord `json:"claims" validate:"required,min=1"`
}
