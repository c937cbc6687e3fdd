package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/burakdemirel/analysishub/internal/domain/analysis"
)

// Client speaks the fixed analyzer contract over HTTP. One base URL serves
// all three tools under per-tool path prefixes.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// toolPath maps the closed tool set onto URL prefixes. Exhaustive on purpose:
// a new tool must be wired here before it can be dispatched.
func toolPath(t analysis.Tool) string {
	switch t {
	case analysis.ToolStyleChecker:
		return "style"
	case analysis.ToolMemorySafety:
		return "memsafety"
	case analysis.ToolVulnerability:
		return "vulnscan"
	}
	return ""
}

// submitEnvelope is the shared primary-response shape.
type submitEnvelope struct {
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	AnalysisID string          `json:"analysis_id,omitempty"`
}

// SubmitFile uploads a source file for analysis.
func (c *Client) SubmitFile(ctx context.Context, tool analysis.Tool, filename string, content []byte) (analysis.SubmitOutcome, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return analysis.SubmitOutcome{}, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return analysis.SubmitOutcome{}, fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return analysis.SubmitOutcome{}, fmt.Errorf("building upload form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/analyze", c.baseURL, toolPath(tool))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return analysis.SubmitOutcome{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.doSubmit(req)
}

// SubmitImage asks the vulnerability scanner to analyze an image reference.
func (c *Client) SubmitImage(ctx context.Context, image string) (analysis.SubmitOutcome, error) {
	endpoint := fmt.Sprintf("%s/%s/analyze?image=%s",
		c.baseURL, toolPath(analysis.ToolVulnerability), url.QueryEscape(image))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return analysis.SubmitOutcome{}, err
	}
	return c.doSubmit(req)
}

func (c *Client) doSubmit(req *http.Request) (analysis.SubmitOutcome, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return analysis.SubmitOutcome{}, fmt.Errorf("calling analyzer backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return analysis.SubmitOutcome{}, fmt.Errorf("reading backend response: %w", err)
	}

	var env submitEnvelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("analyzer backend returned status %d", resp.StatusCode)
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return analysis.SubmitOutcome{}, &analysis.BackendError{Message: msg}
	}
	if decodeErr != nil {
		return analysis.SubmitOutcome{}, fmt.Errorf("decoding backend response: %w", decodeErr)
	}
	if env.Status == "error" {
		msg := env.Error
		if msg == "" {
			msg = "analysis failed"
		}
		return analysis.SubmitOutcome{}, &analysis.BackendError{Message: msg}
	}

	result, err := analysis.NormalizeResult(env.Result)
	if err != nil {
		return analysis.SubmitOutcome{}, fmt.Errorf("decoding result payload: %w", err)
	}
	return analysis.SubmitOutcome{Result: result, AnalysisID: env.AnalysisID}, nil
}

// AIStatus issues one probe for the record's AI commentary.
func (c *Client) AIStatus(ctx context.Context, tool analysis.Tool, analysisID string) (analysis.AIProbeResult, error) {
	endpoint := fmt.Sprintf("%s/%s/ai-status/%s", c.baseURL, toolPath(tool), url.PathEscape(analysisID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return analysis.AIProbeResult{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return analysis.AIProbeResult{}, fmt.Errorf("calling analyzer backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return analysis.AIProbeResult{}, &analysis.BackendError{
			Message: fmt.Sprintf("analyzer backend returned status %d", resp.StatusCode),
		}
	}

	var body struct {
		Status    string `json:"status"`
		AIComment string `json:"ai_comment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return analysis.AIProbeResult{}, fmt.Errorf("decoding probe response: %w", err)
	}
	return analysis.AIProbeResult{
		Done:    body.Status == "completed",
		Comment: body.AIComment,
	}, nil
}

// Chat runs one question/answer exchange grounded in a completed analysis.
func (c *Client) Chat(ctx context.Context, tool analysis.Tool, analysisResult analysis.ResultPayload, sourceCode, question string) (string, error) {
	payload := map[string]any{
		"analysis_result": json.RawMessage(analysisResult),
		"source_code":     sourceCode,
		"question":        question,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/chat", c.baseURL, toolPath(tool))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling analyzer backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &analysis.BackendError{
			Message: fmt.Sprintf("analyzer backend returned status %d", resp.StatusCode),
		}
	}

	var body struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	return body.Response, nil
}

// Ping reports whether the backend answers at all; used by the health check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("analyzer backend unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
