// Package matching decides which ledger order, if any, a claim belongs to.
// The decision has two gates and a tie-break:
//   - name gate: composite fuzzy score of the normalized names
//   - date gate: any claim service date within the window of any order date
//   - tie-break: procedure code overlap, then composite score, then scan order
package matching

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/Ramsey-B/clover/pkg/dates"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalize"
	"github.com/Ramsey-B/clover/pkg/refindex"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Match policy. These are contract values, not tunables: changing either
// changes which claims reconcile, so they are deliberately not configuration.
const (
	// CompositeThreshold is the minimum composite name score (mean of the
	// token-sort and token-set ratios) for an order to become a candidate.
	CompositeThreshold = 90.0

	// DateWindowDays is the maximum distance, inclusive, between a claim
	// service date and an order service date.
	DateWindowDays = 14
)

// Engine matches one claim against a reference index. Stateless; safe for
// concurrent use across claims.
type Engine struct {
	logger ectologger.Logger
}

func NewEngine(logger ectologger.Logger) *Engine {
	return &Engine{logger: logger}
}

// Match classifies a claim against the index. It always returns a result,
// never an error: incomplete input and zero-candidate outcomes are unmatched
// classifications, not faults.
//
// The candidate scan is strictly sequential in index order so that the final
// tie-break (stable sort) is deterministic for identical inputs.
func (e *Engine) Match(ctx context.Context, claim *models.ClaimRecord, idx *refindex.Index) *models.MatchResult {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Match")
	defer span.End()

	rawName := claim.PatientName()
	normalizedName := normalize.Fingerprint(rawName)
	claimDates := dates.ParseAll(claim.RawDates())

	scores := &models.MatchScores{
		ClaimNameRaw:        rawName,
		ClaimNameNormalized: normalizedName,
	}

	// Fail fast before scanning: a claim with no usable name or no usable
	// service date can never satisfy both gates.
	if normalizedName == "" || len(claimDates) == 0 {
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"claim_id":     claim.ClaimID,
			"has_name":     normalizedName != "",
			"parsed_dates": len(claimDates),
		}).Debug("Claim missing name or service date")
		return &models.MatchResult{
			Status: models.MatchStatusUnmatched,
			Reason: models.UnmatchReasonMissingNameOrDate,
			Scores: scores,
		}
	}

	candidates := e.scanCandidates(normalizedName, claimDates, idx)
	metrics.RecordCandidateCount(len(candidates))
	scores.CandidateCount = len(candidates)

	if len(candidates) == 0 {
		return &models.MatchResult{
			Status: models.MatchStatusUnmatched,
			Reason: models.UnmatchReasonNoCandidate,
			Scores: scores,
		}
	}

	// The procedure-code tie-break only runs for contested claims. A single
	// candidate wins outright and its overlap count stays nil.
	if len(candidates) > 1 {
		claimCodes := claim.CPTCodes()
		for i := range candidates {
			overlap := cptOverlap(claimCodes, candidates[i].order.CPTCodes)
			candidates[i].cptOverlap = &overlap
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if *candidates[i].cptOverlap != *candidates[j].cptOverlap {
				return *candidates[i].cptOverlap > *candidates[j].cptOverlap
			}
			return candidates[i].composite > candidates[j].composite
		})
	}

	winner := candidates[0]

	scores.OrderNameRaw = winner.order.DisplayName()
	scores.OrderNameNormalized = winner.order.NormalizedName
	scores.TokenSortScore = winner.tokenSort
	scores.TokenSetScore = winner.tokenSet
	scores.CompositeScore = winner.composite
	scores.CPTOverlapCount = winner.cptOverlap

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"claim_id":        claim.ClaimID,
		"order_id":        winner.order.OrderID,
		"composite_score": winner.composite,
		"candidate_count": len(candidates),
	}).Debug("Matched claim to order")

	return &models.MatchResult{
		Status:                models.MatchStatusMatched,
		OrderID:               winner.order.OrderID,
		FileMakerRecordNumber: winner.order.FileMakerRecordNumber,
		Scores:                scores,
	}
}

// candidate is one order that passed both gates, captured in scan order.
type candidate struct {
	order      *models.OrderRecord
	tokenSort  int
	tokenSet   int
	composite  float64
	cptOverlap *int
}

// scanCandidates walks the index in order and keeps every order passing both
// the name and date gates.
func (e *Engine) scanCandidates(normalizedName string, claimDates []time.Time, idx *refindex.Index) []candidate {
	var candidates []candidate

	for _, order := range idx.Orders() {
		tokenSort := fuzzy.TokenSortRatio(normalizedName, order.NormalizedName)
		tokenSet := fuzzy.TokenSetRatio(normalizedName, order.NormalizedName)
		composite := (float64(tokenSort) + float64(tokenSet)) / 2.0

		if composite < CompositeThreshold {
			continue
		}

		if !anyDateWithinWindow(claimDates, order.DatesOfService) {
			continue
		}

		candidates = append(candidates, candidate{
			order:     order,
			tokenSort: tokenSort,
			tokenSet:  tokenSet,
			composite: composite,
		})
	}

	return candidates
}
