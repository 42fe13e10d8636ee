package printing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client wraps the HTTP API of the print spooler sitting in front of the
// physical printers. Each store has its own station name; receipts and
// closure reports go to the till station.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// TillStation receives customer receipts, signed bills and closure reports.
const TillStation = "till"

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Ping checks if the print spooler is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("print spooler returned status %d", resp.StatusCode)
	}
	return nil
}

type printRequest struct {
	Station string `json:"station"`
	Content string `json:"content"`
}

// Print sends rendered text to one station.
func (c *Client) Print(ctx context.Context, station, content string) error {
	body, err := json.Marshal(printRequest{Station: station, Content: content})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/print", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("print failed with status %d", resp.StatusCode)
	}
	return nil
}
