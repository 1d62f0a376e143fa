package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"go.uber.org/zap"

	"fargoat/internal/quest"
)

// DefaultSubmitErrorMessage is used when the backend gives no reason
const DefaultSubmitErrorMessage = "Failed to submit quest"

// maxResponseSize bounds collaborator response bodies
const maxResponseSize = 1 << 20

// SubmitError is a non-2xx answer from the quest backend
type SubmitError struct {
	StatusCode int
	Message    string
}

func (e *SubmitError) Error() string {
	return e.Message
}

// SubmissionClient posts quest submissions as multipart forms
type SubmissionClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewSubmissionClient creates a client posting to endpoint
func NewSubmissionClient(endpoint string, client *http.Client, logger *zap.Logger) *SubmissionClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &SubmissionClient{
		endpoint: endpoint,
		client:   client,
		logger:   logger.Named("submission_client"),
	}
}

// SubmitQuest implements quest.Submitter
func (c *SubmissionClient) SubmitQuest(ctx context.Context, sub *quest.Submission) (json.RawMessage, error) {
	body, contentType, err := encodeMultipart(sub)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read submit response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Quest backend rejected submission",
			zap.Int("status", resp.StatusCode))
		return nil, &SubmitError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(payload),
		}
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("quest backend returned invalid JSON")
	}

	return json.RawMessage(payload), nil
}

func errorMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Message == "" {
		return DefaultSubmitErrorMessage
	}
	return body.Message
}

// encodeMultipart writes every text value as a form field and the image
// as a file part named "image"
func encodeMultipart(sub *quest.Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, v := range sub.Values {
		if err := w.WriteField(string(v.Key), v.Value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", v.Key, err)
		}
	}

	if sub.Image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, quest.FieldImage, sub.Image.Filename))
		contentType := sub.Image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(sub.Image.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write image part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
