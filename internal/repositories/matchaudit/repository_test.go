package matchaudit

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func TestNewRowMatched(t *testing.T) {
	result := &models.MatchResult{
		Status:                models.MatchStatusMatched,
		OrderID:               "ORD-1001",
		FileMakerRecordNumber: "FM-77",
		Scores: &models.MatchScores{
			ClaimNameRaw:        "John Smith",
			ClaimNameNormalized: "HHIJMNOST",
			CompositeScore:      97.5,
		},
	}

	row := newRow("clm-1", "batch-1", result)

	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "clm-1", row.ClaimID)
	assert.Equal(t, "batch-1", row.BatchID)
	assert.Equal(t, "matched", row.Status)
	assert.Empty(t, row.Reason)
	assert.Equal(t, "John Smith", row.ClaimName)
	assert.Equal(t, "HHIJMNOST", row.NormalizedName)
	assert.False(t, row.CreatedAt.IsZero())

	require.True(t, row.OrderID.Valid)
	assert.Equal(t, "ORD-1001", row.OrderID.String)
	require.True(t, row.FileMakerRecordNumber.Valid)
	assert.Equal(t, "FM-77", row.FileMakerRecordNumber.String)

	require.NotNil(t, row.Scores.GetValue())
	assert.Equal(t, 97.5, row.Scores.GetValue().CompositeScore)
}

func TestNewRowUnmatchedLeavesOrderNull(t *testing.T) {
	result := &models.MatchResult{
		Status: models.MatchStatusUnmatched,
		Reason: models.UnmatchReasonNoCandidate,
		Scores: &models.MatchScores{ClaimNameRaw: "Jane Doe", ClaimNameNormalized: "ADEEJNNO"},
	}

	row := newRow("clm-2", "batch-1", result)

	assert.Equal(t, "unmatched", row.Status)
	assert.Equal(t, "no candidate", row.Reason)
	assert.False(t, row.OrderID.Valid)
	assert.False(t, row.FileMakerRecordNumber.Valid)
}

func TestNewRowNilScores(t *testing.T) {
	result := &models.MatchResult{
		Status: models.MatchStatusFailed,
	}

	row := newRow("clm-3", "batch-1", result)

	assert.Equal(t, "failed", row.Status)
	assert.Empty(t, row.ClaimName)
	assert.Empty(t, row.NormalizedName)
	assert.Nil(t, row.Scores.GetValue())
}

func TestToEntryFlattensNullableColumns(t *testing.T) {
	now := time.Now().UTC()
	scores := &models.MatchScores{CompositeScore: 92.0}

	matched := MatchResultRow{
		ID:                    "row-1",
		ClaimID:               "clm-1",
		BatchID:               "batch-1",
		ClaimName:             "John Smith",
		NormalizedName:        "HHIJMNOST",
		Status:                "matched",
		OrderID:               sql.NullString{String: "ORD-1001", Valid: true},
		FileMakerRecordNumber: sql.NullString{String: "FM-77", Valid: true},
		Scores:                database.JSONB[*models.MatchScores]{Data: scores},
		CreatedAt:             now,
	}

	entry := ToEntry(&matched)
	assert.Equal(t, "row-1", entry.ID)
	assert.Equal(t, "ORD-1001", entry.OrderID)
	assert.Equal(t, "FM-77", entry.FileMakerRecordNumber)
	assert.Equal(t, scores, entry.Scores)
	assert.Equal(t, now, entry.CreatedAt)

	unmatched := MatchResultRow{ID: "row-2", Status: "unmatched", Reason: "no candidate"}
	entry = ToEntry(&unmatched)
	assert.Empty(t, entry.OrderID)
	assert.Empty(t, entry.FileMakerRecordNumber)
	assert.Nil(t, entry.Scores)
	assert.Equal(t, "no candidate", entry.Reason)
}

func TestToEntriesPreservesOrder(t *testing.T) {
	rows := []MatchResultRow{
		{ID: "row-1", ClaimID: "clm-1"},
		{ID: "row-2", ClaimID: "clm-2"},
	}

	entries := ToEntries(rows)
	require.Len(t, entries, 2)
	assert.Equal(t, "clm-1", entries[0].ClaimID)
	assert.Equal(t, "clm-2", entries[1].ClaimID)

	// an unknown batch serves [] rather than null
	assert.NotNil(t, ToEntries(nil))
	assert.Empty(t, ToEntries(nil))
}
