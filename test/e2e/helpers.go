package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config holds test configuration
type Config struct {
	CloverURL    string
	KafkaBrokers []string
	ClaimsTopic  string
	EventsTopic  string
	TestTenantID string
}

// DefaultConfig returns default test configuration
func DefaultConfig() Config {
	return Config{
		CloverURL:    getEnv("CLOVER_URL", "http://localhost:3004"),
		KafkaBrokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
		ClaimsTopic:  getEnv("KAFKA_CLAIMS_TOPIC", "extracted-claims"),
		EventsTopic:  getEnv("KAFKA_EVENTS_TOPIC", "match-events"),
		TestTenantID: getEnv("TEST_TENANT_ID", "test-tenant-e2e"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// HTTPClient wraps http.Client with helper methods
type HTTPClient struct {
	client   *http.Client
	baseURL  string
	tenantID string
}

// NewHTTPClient creates a new HTTP client for the service
func NewHTTPClient(baseURL, tenantID string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  baseURL,
		tenantID: tenantID,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(path string) (*http.Response, error) {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.addHeaders(req)
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(path string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	c.addHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// PostRaw performs a POST request with a raw body, useful for malformed payloads
func (c *HTTPClient) PostRaw(path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.addHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

func (c *HTTPClient) addHeaders(req *http.Request) {
	// Test auth headers - used when AUTH_ENABLED=false
	req.Header.Set("X-Tenant-ID", c.tenantID)
	req.Header.Set("X-User-ID", "e2e-test-user")
}

// ParseResponse parses a JSON response into the given type
func ParseResponse[T any](resp *http.Response) (T, error) {
	var result T
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}
	return result, nil
}

// KafkaHelper provides Kafka testing utilities
type KafkaHelper struct {
	brokers []string
}

// NewKafkaHelper creates a new Kafka helper
func NewKafkaHelper(brokers []string) *KafkaHelper {
	return &KafkaHelper{brokers: brokers}
}

// ProduceMessage sends a message to a topic
func (k *KafkaHelper) ProduceMessage(ctx context.Context, topic string, key string, value []byte, headers map[string]string) error {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(k.brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	kafkaHeaders := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: kafkaHeaders,
	})
}

// ConsumeMessagesAfter consumes messages from a topic, filtering for messages after a specific time
func (k *KafkaHelper) ConsumeMessagesAfter(ctx context.Context, topic, groupID string, timeout time.Duration, maxMessages int, afterTime time.Time) ([]kafka.Message, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	defer reader.Close()

	messages := make([]kafka.Message, 0, maxMessages)
	deadline := time.Now().Add(timeout)

	for len(messages) < maxMessages && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
		msg, err := reader.FetchMessage(ctx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				continue // Timeout, try again
			}
			return messages, err
		}

		// Commit all messages to advance offset, but only keep recent ones
		reader.CommitMessages(context.Background(), msg)

		// Filter: only keep messages after the specified time
		if !afterTime.IsZero() && msg.Time.Before(afterTime) {
			continue // Skip old messages
		}

		messages = append(messages, msg)
	}

	return messages, nil
}

// RequireService skips the test if the service is not available
// Waits up to 10 seconds for service to become ready (handles 503 during startup)
func RequireService(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(10 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/api/v1/health")
		if err != nil {
			// Service not running at all
			t.Skipf("Skipping: service at %s is not available. Start it with 'make dev' or 'go run ./cmd/clover serve'", url)
			return
		}

		status := resp.StatusCode
		resp.Body.Close()

		if status == http.StatusOK {
			return // Service is ready
		}

		if status == http.StatusServiceUnavailable {
			// Service is starting up, wait and retry
			t.Logf("Service at %s is starting (503), waiting...", url)
			time.Sleep(1 * time.Second)
			continue
		}

		// Other error status
		t.Skipf("Skipping: service at %s returned status %d", url, status)
		return
	}

	t.Skipf("Skipping: service at %s did not become ready within 10s", url)
}

// ExtractedClaim mirrors the claim.extracted payload published by the
// extraction pipeline.
type ExtractedClaim struct {
	ClaimID string         `json:"claim_id"`
	Source  map[string]any `json:"source"`
	Claim   map[string]any `json:"claim"`
}

// CreateExtractedClaim creates a test claim.extracted message
func CreateExtractedClaim(tenantID, batchID, patientName, dateOfService string, cptCodes []string) ExtractedClaim {
	lines := make([]map[string]any, 0, len(cptCodes))
	for _, cpt := range cptCodes {
		lines = append(lines, map[string]any{
			"date_of_service": dateOfService,
			"cpt_code":        cpt,
		})
	}
	return ExtractedClaim{
		ClaimID: fmt.Sprintf("e2e-claim-%d", time.Now().UnixNano()),
		Source: map[string]any{
			"tenant_id":    tenantID,
			"batch_id":     batchID,
			"document_key": "e2e/test-form.pdf",
			"extractor":    "e2e-test",
		},
		Claim: map[string]any{
			"patient_info": map[string]any{
				"patient_name": patientName,
			},
			"service_lines": lines,
		},
	}
}
