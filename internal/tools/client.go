// Package tools is the HTTP client for the opaque document batch-job service
// (question generation, slide summarization, web scraping). Inputs arrive as
// blob-storage URLs; the client fetches them and forwards multipart uploads.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"

	"canvas-backend/internal/config"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.ToolsConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Scrape extracts the main text content of a web page.
func (c *Client) Scrape(ctx context.Context, pageURL string) (string, error) {
	body, err := json.Marshal(map[string]string{"url": pageURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Content string `json:"content"`
	}
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	return result.Content, nil
}

// GenerateQuestions runs the question-generation pipeline over a syllabus and
// a past-questions document, both referenced by URL.
func (c *Client) GenerateQuestions(ctx context.Context, syllabusURL, pyqsURL string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := c.fetchInto(ctx, mw, "syllabus", syllabusURL); err != nil {
		return "", err
	}
	if err := c.fetchInto(ctx, mw, "pyqs", pyqsURL); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-questions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		GeneratedQuestions string `json:"generated_questions"`
	}
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	return result.GeneratedQuestions, nil
}

// SummarizePPT runs the slide-deck summarizer; the summary shape is opaque
// and passed through to the caller as raw JSON.
func (c *Client) SummarizePPT(ctx context.Context, fileURL string) (json.RawMessage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := c.fetchInto(ctx, mw, "file", fileURL); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize-ppt", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		Summary json.RawMessage `json:"summary"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return result.Summary, nil
}

// fetchInto downloads a blob-storage URL and streams it into one multipart
// form file field.
func (c *Client) fetchInto(ctx context.Context, mw *multipart.Writer, field, fileURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", field, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", field, resp.StatusCode)
	}

	name := "file"
	if u, err := url.Parse(fileURL); err == nil && path.Base(u.Path) != "/" {
		name = path.Base(u.Path)
	}

	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, resp.Body)
	return err
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("batch service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
