package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
)

var (
	// ErrAgentUnavailable means the extraction agent could not be reached or
	// answered with an error status.
	ErrAgentUnavailable = errors.New("extraction agent unavailable")
	// ErrAgentTimeout means the agent call exceeded the caller's deadline.
	// Treated identically to unavailability by callers.
	ErrAgentTimeout = errors.New("extraction agent timed out")
	// ErrInvalidPayload means the agent answered with a payload that fails
	// schema validation.
	ErrInvalidPayload = errors.New("extraction agent returned an invalid payload")
)

// AgentFields is the structured output of the extraction agent for one
// uploaded document. Every field is an optional value with an optional
// confidence; a field the agent could not read is absent, never scored.
type AgentFields struct {
	RegistrationNumber     models.Proposal `json:"registration_number"`
	PolicyNumber           models.Proposal `json:"policy_number"`
	StartDate              models.Proposal `json:"start_date"`
	ExpiryDate             models.Proposal `json:"expiry_date"`
	Make                   models.Proposal `json:"make"`
	Model                  models.Proposal `json:"model"`
	VehicleType            models.Proposal `json:"vehicle_type"`
	DocumentTypeSuggestion models.Proposal `json:"document_type_suggestion"`
}

// Agent reads an uploaded document and proposes structured field values.
// The implementation is a black box; it may fail or time out.
type Agent interface {
	Extract(ctx context.Context, documentBytes []byte, mimeType string) (AgentFields, error)
}

// Client calls the extraction agent service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs an agent client. The timeout bounds the whole call;
// the pipeline does no retries of its own.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Extract sends the document bytes to the agent and decodes its proposal.
func (c *Client) Extract(ctx context.Context, documentBytes []byte, mimeType string) (AgentFields, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(documentBytes))
	if err != nil {
		return AgentFields{}, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return AgentFields{}, fmt.Errorf("%w: %v", ErrAgentTimeout, err)
		}
		return AgentFields{}, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return AgentFields{}, fmt.Errorf("%w: status %d", ErrAgentUnavailable, resp.StatusCode)
	}

	var fields AgentFields
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return AgentFields{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return fields, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
