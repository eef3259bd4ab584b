package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaimMessage(t *testing.T) {
	jsonData := `{
		"claim_id": "clm-001",
		"source": {
			"tenant_id": "550e8400-e29b-41d4-a716-446655440000",
			"batch_id": "batch-2024-03",
			"document_key": "scans/2024/03/form-0001.pdf",
			"extractor": "gpt-4o"
		},
		"claim": {
			"patient_info": {
				"patient_name": "Smith, John",
				"patient_dob": "1984-07-02"
			},
			"service_lines": [
				{"date_of_service": "2024-03-01", "cpt_code": "99213", "charge_amount": "125.00"},
				{"date_of_service": "2024-03-01", "cpt_code": "73721"}
			]
		}
	}`

	msg := &IncomingMessage{Value: []byte(jsonData)}
	require.NoError(t, msg.ParseClaimMessage())

	require.NotNil(t, msg.ClaimMessage)
	assert.Equal(t, "clm-001", msg.GetClaimID())
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", msg.GetTenantID())
	assert.Equal(t, "batch-2024-03", msg.GetBatchID())
	assert.Equal(t, "scans/2024/03/form-0001.pdf", msg.GetDocumentKey())
	assert.Equal(t, "Smith, John", msg.ClaimMessage.Claim.PatientName())
	assert.Len(t, msg.ClaimMessage.Claim.ServiceLines, 2)
	assert.Equal(t, "99213", msg.ClaimMessage.Claim.ServiceLines[0].CPTCode)
}

func TestParseClaimMessageInvalidJSON(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{"claim_id": `)}

	err := msg.ParseClaimMessage()
	require.Error(t, err)
	assert.Nil(t, msg.ClaimMessage)
}

func TestGetClaimIDFallsBackToBody(t *testing.T) {
	jsonData := `{
		"source": {"tenant_id": "tenant-1", "batch_id": "batch-1"},
		"claim": {
			"claim_id": "clm-from-body",
			"patient_info": {"patient_name": "Doe, Jane"},
			"service_lines": []
		}
	}`

	msg := &IncomingMessage{Value: []byte(jsonData)}
	require.NoError(t, msg.ParseClaimMessage())

	assert.Equal(t, "clm-from-body", msg.GetClaimID())
}

func TestGetClaimIDFallsBackToKey(t *testing.T) {
	msg := &IncomingMessage{
		Key:   "clm-from-key",
		Value: []byte(`{"source": {"tenant_id": "tenant-1"}, "claim": {"service_lines": []}}`),
	}
	require.NoError(t, msg.ParseClaimMessage())

	assert.Equal(t, "clm-from-key", msg.GetClaimID())
}

func TestGetTenantIDFallsBackToHeader(t *testing.T) {
	msg := &IncomingMessage{
		Value:   []byte(`{"claim_id": "clm-1", "claim": {"service_lines": []}}`),
		Headers: map[string]string{"tenant_id": "tenant-from-header"},
	}
	require.NoError(t, msg.ParseClaimMessage())

	assert.Equal(t, "tenant-from-header", msg.GetTenantID())
}

func TestGetBatchIDFallsBackToHeader(t *testing.T) {
	msg := &IncomingMessage{
		Value:   []byte(`{"claim_id": "clm-1", "claim": {"service_lines": []}}`),
		Headers: map[string]string{"batch_id": "batch-from-header"},
	}
	require.NoError(t, msg.ParseClaimMessage())

	assert.Equal(t, "batch-from-header", msg.GetBatchID())
}
