package models

// MessageSource identifies where a claim message came from in the upstream
// extraction pipeline.
type MessageSource struct {
	TenantID    string `json:"tenant_id"`
	BatchID     string `json:"batch_id"`
	DocumentKey string `json:"document_key,omitempty"`
	Extractor   string `json:"extractor,omitempty"`
}

// ClaimExtractedMessage is the claim.extracted payload published by the
// extraction pipeline once a scanned form has been OCR'd and structured.
type ClaimExtractedMessage struct {
	ClaimID string        `json:"claim_id"`
	Source  MessageSource `json:"source"`
	Claim   ClaimRecord   `json:"claim"`
}

// GetClaimID returns the message claim id, falling back to the claim body.
func (m *ClaimExtractedMessage) GetClaimID() string {
	if m.ClaimID != "" {
		return m.ClaimID
	}
	return m.Claim.ClaimID
}
