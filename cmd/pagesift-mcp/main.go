// Command pagesift-mcp exposes a running pagesift API as MCP tools over stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiClient talks to the pagesift HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	poll    time.Duration
}

// scrapeEnvelope mirrors the POST /api/scrape response.
type scrapeEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// pageView is the subset of a scrape result the tools render.
type pageView struct {
	URL      string  `json:"url"`
	Markdown *string `json:"markdown"`
	Metadata struct {
		Title *string `json:"title"`
	} `json:"metadata"`
	Crawl struct {
		HTTPStatusCode *int `json:"httpStatusCode"`
	} `json:"crawl"`
	Challenge *struct {
		Detected bool   `json:"detected"`
		Resolved bool   `json:"resolved"`
		Strategy string `json:"strategy"`
	} `json:"challenge"`
	TimeTaken string `json:"timeTaken"`
}

type asyncEnvelope struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

type batchEnvelope struct {
	Success bool     `json:"success"`
	BatchID string   `json:"batchId"`
	JobIDs  []string `json:"jobIds"`
}

type jobRecord struct {
	JobID  string          `json:"jobId"`
	Status string          `json:"status"`
	URL    string          `json:"url"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func main() {
	apiURL := os.Getenv("PAGESIFT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3010"
	}
	client := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("PAGESIFT_API_KEY"),
		http:    &http.Client{Timeout: 300 * time.Second},
		poll:    2 * time.Second,
	}

	s := server.NewMCPServer(
		"pagesift",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	registerTools(s, client)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func registerTools(s *server.MCPServer, c *apiClient) {
	extractors := mcp.WithArray("extractors",
		mcp.Description("Structured views to include: links, images, headings, text, prices, tables (default all)"),
	)

	s.AddTool(mcp.NewTool("scrape_page",
		mcp.WithDescription("Load a page in a real browser, get past bot challenges and cookie banners, and return its readable Markdown plus structured data."),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL of the page to scrape")),
		mcp.WithNumber("wait_for", mcp.Description("Extra render time in milliseconds (default 3000, max 60000)")),
		extractors,
		mcp.WithString("fields", mcp.Description("Comma-separated top-level result keys to return, e.g. 'url,markdown,prices'")),
	), c.handleScrapePage)

	s.AddTool(mcp.NewTool("scrape_async",
		mcp.WithDescription("Start a scrape in the background and return a job id to poll with get_job."),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL of the page to scrape")),
		extractors,
	), c.handleScrapeAsync)

	s.AddTool(mcp.NewTool("batch_scrape",
		mcp.WithDescription("Scrape up to 10 URLs in parallel and wait for all of them to finish."),
		mcp.WithArray("urls", mcp.Required(), mcp.Description("List of URLs to scrape (1 to 10)")),
		extractors,
	), c.handleBatchScrape)

	s.AddTool(mcp.NewTool("get_job",
		mcp.WithDescription("Fetch the status and result of an async or batch job."),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id returned by scrape_async or batch_scrape")),
		mcp.WithString("fields", mcp.Description("Comma-separated result keys to return")),
	), c.handleGetJob)
}

// do sends a request and returns the body. Non-JSON failures are errors;
// API-level failures are left to the caller to decode.
func (c *apiClient) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func scrapeOptions(request mcp.CallToolRequest) map[string]any {
	payload := map[string]any{}
	args := request.GetArguments()
	if v, ok := args["wait_for"]; ok {
		payload["waitFor"] = v
	}
	if ex := request.GetStringSlice("extractors", nil); len(ex) > 0 {
		payload["extractors"] = ex
	}
	return payload
}

func envelopeError(env scrapeEnvelope) string {
	if len(env.Errors) > 0 {
		parts := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			parts = append(parts, e.Field+": "+e.Message)
		}
		return "invalid request: " + strings.Join(parts, "; ")
	}
	if env.Code != "" {
		return fmt.Sprintf("[%s] %s", env.Code, env.Error)
	}
	if env.Error != "" {
		return env.Error
	}
	return "scrape failed"
}

func (c *apiClient) handleScrapePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	payload := scrapeOptions(request)
	payload["url"] = url

	path := "/api/scrape"
	fields := request.GetString("fields", "")
	if fields != "" {
		path += "?fields=" + fields
	}

	raw, _, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var env scrapeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}
	if !env.Success {
		return mcp.NewToolResultError(envelopeError(env)), nil
	}

	if fields != "" {
		return mcp.NewToolResultText(prettyJSON(env.Data)), nil
	}
	return mcp.NewToolResultText(renderPage(env.Data)), nil
}

func (c *apiClient) handleScrapeAsync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	payload := scrapeOptions(request)
	payload["url"] = url

	raw, _, err := c.do(ctx, http.MethodPost, "/api/scrape/async", payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var env asyncEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || !env.Success {
		return mcp.NewToolResultError("failed to start job: " + string(raw)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Job started: %s\nPoll it with get_job.", env.JobID)), nil
}

func (c *apiClient) handleBatchScrape(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls, err := request.RequireStringSlice("urls")
	if err != nil {
		return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
	}
	payload := scrapeOptions(request)
	payload["urls"] = urls

	raw, _, err := c.do(ctx, http.MethodPost, "/api/scrape/batch", payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var env batchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || !env.Success {
		return mcp.NewToolResultError("failed to start batch: " + string(raw)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Batch %s (%d URLs)\n\n", env.BatchID, len(env.JobIDs))
	for i, id := range env.JobIDs {
		rec, err := c.waitJob(ctx, id)
		if err != nil {
			fmt.Fprintf(&sb, "--- [%d] %s: %v ---\n\n", i+1, id, err)
			continue
		}
		if rec.Status == "failed" {
			fmt.Fprintf(&sb, "--- [%d] %s FAILED: %s ---\n\n", i+1, rec.URL, rec.Error)
			continue
		}
		fmt.Fprintf(&sb, "--- [%d] %s ---\n%s\n\n", i+1, rec.URL, renderPage(rec.Data))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *apiClient) handleGetJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("job_id is required"), nil
	}
	path := "/api/jobs/" + id
	if fields := request.GetString("fields", ""); fields != "" {
		path += "?fields=" + fields
	}

	raw, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if status == http.StatusNotFound {
		return mcp.NewToolResultError("job not found: " + id), nil
	}
	return mcp.NewToolResultText(prettyJSON(raw)), nil
}

// waitJob polls a job until it leaves the running state or ctx is done.
func (c *apiClient) waitJob(ctx context.Context, id string) (*jobRecord, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		raw, status, err := c.do(ctx, http.MethodGet, "/api/jobs/"+id, nil)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("job not found")
		}
		var rec jobRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("parse job: %w", err)
		}
		if rec.Status != "running" {
			return &rec, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// renderPage formats a result as a short header plus its Markdown body.
func renderPage(data json.RawMessage) string {
	var p pageView
	if err := json.Unmarshal(data, &p); err != nil {
		return prettyJSON(data)
	}

	var sb strings.Builder
	if p.Metadata.Title != nil {
		fmt.Fprintf(&sb, "Title: %s\n", *p.Metadata.Title)
	}
	fmt.Fprintf(&sb, "Source: %s\n", p.URL)
	if p.Crawl.HTTPStatusCode != nil {
		fmt.Fprintf(&sb, "Status: %d\n", *p.Crawl.HTTPStatusCode)
	}
	if p.Challenge != nil {
		fmt.Fprintf(&sb, "Challenge: resolved=%t strategy=%s\n", p.Challenge.Resolved, p.Challenge.Strategy)
	}
	sb.WriteString("\n")
	if p.Markdown != nil {
		sb.WriteString(*p.Markdown)
	} else {
		sb.WriteString("(no readable content)")
	}
	if p.TimeTaken != "" {
		fmt.Fprintf(&sb, "\n\n---\nTime: %s", p.TimeTaken)
	}
	return sb.String()
}

func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
