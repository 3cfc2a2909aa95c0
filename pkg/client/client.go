// Package client speaks the scan API's envelope protocol and implements
// the polling contract for observing a scan's eventual verdict.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"filescan-service/internal/model"
)

const DefaultPollInterval = 3 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success {
		if env.Error != "" {
			return fmt.Errorf("request failed: %s", env.Error)
		}
		return fmt.Errorf("request failed: HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// CreateScan uploads file bytes as a multipart form and returns the
// accepted scan in its initial processing state.
func (c *Client) CreateScan(ctx context.Context, filename string, file io.Reader, fields map[string]string) (*model.ScanAccepted, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scan", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var accepted model.ScanAccepted
	if err := c.do(req, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

func (c *Client) GetScan(ctx context.Context, id string) (*model.ScanRecord, error) {
	var record model.ScanRecord
	if err := c.getJSON(ctx, "/api/scans/"+url.PathEscape(id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) ListScans(ctx context.Context, cursor string, limit int) (*ScanPage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/scans"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var page ScanPage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type ScanPage struct {
	Items      []model.ScanRecord `json:"items"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

func (c *Client) RetryScan(ctx context.Context, id string) (*model.ScanAccepted, error) {
	var accepted model.ScanAccepted
	if err := c.postJSON(ctx, "/api/scans/"+url.PathEscape(id)+"/retry", nil, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

func (c *Client) DeleteScan(ctx context.Context, id string) (*model.DeleteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/scans/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var result model.DeleteResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WatchScan fetches the scan and, while it is still processing, fetches
// again every interval until a terminal status shows up. There is no cap
// on attempts: a record stuck in processing is polled until ctx is
// cancelled. A failed fetch stops the watch and is returned as-is; only
// the still-processing case continues. onUpdate, when non-nil, sees every
// observed state including the terminal one.
func (c *Client) WatchScan(ctx context.Context, id string, interval time.Duration, onUpdate func(model.ScanRecord)) (*model.ScanRecord, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		record, err := c.GetScan(ctx, id)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(*record)
		}
		if record.Status.Terminal() {
			return record, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
