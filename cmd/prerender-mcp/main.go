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

// renderRequest mirrors the prerender API request model.
type renderRequest struct {
	URL             string `json:"url"`
	WaitForSelector string `json:"waitForSelector,omitempty"`
}

// renderResponse mirrors the prerender API response model.
type renderResponse struct {
	Success   bool   `json:"success"`
	HTML      string `json:"html"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Bytes     int    `json:"bytes"`
	Readiness *struct {
		Ready       bool     `json:"ready"`
		RowCount    int      `json:"rowCount"`
		Diagnostics []string `json:"diagnostics"`
	} `json:"readiness"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("PRERENDER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3001"
	}

	s := server.NewMCPServer(
		"prerender",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	renderPageTool := mcp.NewTool("render_page",
		mcp.WithDescription("Render a JavaScript-heavy web page in a headless browser and return the final HTML after scripts have run."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to render"),
		),
		mcp.WithString("wait_for_selector",
			mcp.Description("CSS selector to wait for; the page is returned once the element exists and has content, or when the wait times out"),
		),
	)
	s.AddTool(renderPageTool, handleRenderPage(apiURL, &http.Client{Timeout: 120 * time.Second}))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleRenderPage(apiURL string, client *http.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := renderRequest{
			URL:             url,
			WaitForSelector: request.GetString("wait_for_selector", ""),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(apiURL, "/")+"/scrape", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var renderResp renderResponse
		if err := json.Unmarshal(respBody, &renderResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !renderResp.Success {
			errMsg := "render failed"
			if renderResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", renderResp.Error.Code, renderResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatResult(&renderResp)), nil
	}
}

// formatResult puts a short metadata header above the HTML.
func formatResult(r *renderResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\nSource: %s\nBytes: %d\n", r.Title, r.URL, r.Bytes)
	if r.Readiness != nil {
		fmt.Fprintf(&sb, "Ready: %t (rows: %d)\n", r.Readiness.Ready, r.Readiness.RowCount)
		for _, d := range r.Readiness.Diagnostics {
			sb.WriteString("  - " + d + "\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(r.HTML)
	return sb.String()
}
