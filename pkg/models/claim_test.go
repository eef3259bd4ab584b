package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimRecordRawDates(t *testing.T) {

	t.Run("preserves service line order", func(t *testing.T) {
		claim := ClaimRecord{
			ServiceLines: []ServiceLine{
				{DateOfService: "2024-03-15", CPTCode: "99213"},
				{DateOfService: "03/16/2024"},
				{DateOfService: "", CPTCode: "97110"},
			},
		}

		assert.Equal(t, []string{"2024-03-15", "03/16/2024", ""}, claim.RawDates())
	})

	t.Run("no service lines", func(t *testing.T) {
		claim := ClaimRecord{}
		assert.Empty(t, claim.RawDates())
	})
}

func TestClaimRecordCPTCodes(t *testing.T) {

	t.Run("deduplicates and trims", func(t *testing.T) {
		claim := ClaimRecord{
			ServiceLines: []ServiceLine{
				{CPTCode: "99213"},
				{CPTCode: " 99213 "},
				{CPTCode: "97110"},
			},
		}

		codes := claim.CPTCodes()
		assert.Len(t, codes, 2)
		assert.Contains(t, codes, "99213")
		assert.Contains(t, codes, "97110")
	})

	t.Run("skips blank codes", func(t *testing.T) {
		claim := ClaimRecord{
			ServiceLines: []ServiceLine{
				{CPTCode: ""},
				{CPTCode: "   "},
			},
		}

		assert.Empty(t, claim.CPTCodes())
	})
}

func TestClaimRecordWithMatch(t *testing.T) {

	t.Run("copies instead of mutating", func(t *testing.T) {
		claim := &ClaimRecord{
			ClaimID:      "clm-1",
			PatientInfo:  PatientInfo{PatientName: "John Smith"},
			ServiceLines: []ServiceLine{{DateOfService: "2024-03-15"}},
		}

		enriched := claim.WithMatch("ORD-1001", "FM-77")

		assert.Equal(t, "ORD-1001", enriched.OrderID)
		assert.Equal(t, "FM-77", enriched.FileMakerRecordNumber)
		assert.Empty(t, claim.OrderID)
		assert.Empty(t, claim.FileMakerRecordNumber)

		enriched.ServiceLines[0].DateOfService = "changed"
		assert.Equal(t, "2024-03-15", claim.ServiceLines[0].DateOfService)
	})
}
