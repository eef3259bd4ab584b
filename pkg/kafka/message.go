package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	ClaimMessage *models.ClaimExtractedMessage
}

// ParseClaimMessage parses the message value as a claim.extracted payload
func (m *IncomingMessage) ParseClaimMessage() error {
	var msg models.ClaimExtractedMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	m.ClaimMessage = &msg
	return nil
}

// GetClaimID returns the claim ID for this message
func (m *IncomingMessage) GetClaimID() string {
	if m.ClaimMessage != nil {
		if id := m.ClaimMessage.GetClaimID(); id != "" {
			return id
		}
	}
	// Fallback to the message key
	return m.Key
}

// GetTenantID returns the tenant ID for this message
func (m *IncomingMessage) GetTenantID() string {
	if m.ClaimMessage != nil && m.ClaimMessage.Source.TenantID != "" {
		return m.ClaimMessage.Source.TenantID
	}
	// Fallback to header
	return m.Headers["tenant_id"]
}

// GetBatchID returns the extraction batch ID for this message
func (m *IncomingMessage) GetBatchID() string {
	if m.ClaimMessage != nil && m.ClaimMessage.Source.BatchID != "" {
		return m.ClaimMessage.Source.BatchID
	}
	return m.Headers["batch_id"]
}

// GetDocumentKey returns the source document key for this message
func (m *IncomingMessage) GetDocumentKey() string {
	if m.ClaimMessage != nil {
		return m.ClaimMessage.Source.DocumentKey
	}
	return ""
}
