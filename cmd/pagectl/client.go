package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/api"
)

// APIError is a non-2xx response of the module API
type APIError struct {
	Status  int
	Code    string
	Message string
	Tree    *pagemodules.TreeSnapshot
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Client talks to the module API over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the API mounted at baseURL
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(raw))}
		var eb api.ErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Code != "" {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
			apiErr.Tree = eb.Error.Tree
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListTypes lists the module type catalog
func (c *Client) ListTypes(ctx context.Context, active *bool, skip, limit int) ([]pagemodules.ModuleType, error) {
	q := url.Values{}
	if active != nil {
		q.Set("active", strconv.FormatBool(*active))
	}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/types"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var types []pagemodules.ModuleType
	err := c.do(ctx, http.MethodGet, path, nil, &types)
	return types, err
}

// GetTree fetches the tree of a content entity
func (c *Client) GetTree(ctx context.Context, contentID uuid.UUID) (*pagemodules.TreeSnapshot, error) {
	var tree pagemodules.TreeSnapshot
	if err := c.do(ctx, http.MethodGet, "/contents/"+contentID.String()+"/tree", nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// ReloadTree asks the server to resynchronize a tree from storage
func (c *Client) ReloadTree(ctx context.Context, contentID uuid.UUID) (*pagemodules.TreeSnapshot, error) {
	var tree pagemodules.TreeSnapshot
	if err := c.do(ctx, http.MethodPost, "/contents/"+contentID.String()+"/tree/reload", nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// Insert places a new module
func (c *Client) Insert(ctx context.Context, contentID uuid.UUID, req api.InsertModuleRequest) (*api.InsertModuleResponse, error) {
	var resp api.InsertModuleResponse
	if err := c.do(ctx, http.MethodPost, "/contents/"+contentID.String()+"/modules", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Move relocates a module
func (c *Client) Move(ctx context.Context, contentID, moduleID uuid.UUID, req api.MoveModuleRequest) (*pagemodules.TreeSnapshot, error) {
	var tree pagemodules.TreeSnapshot
	path := "/contents/" + contentID.String() + "/modules/" + moduleID.String() + "/move"
	if err := c.do(ctx, http.MethodPost, path, req, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// Remove deletes a module and its subtree
func (c *Client) Remove(ctx context.Context, contentID, moduleID uuid.UUID) (*pagemodules.TreeSnapshot, error) {
	var tree pagemodules.TreeSnapshot
	path := "/contents/" + contentID.String() + "/modules/" + moduleID.String()
	if err := c.do(ctx, http.MethodDelete, path, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// EditAttributes applies a partial attribute edit
func (c *Client) EditAttributes(ctx context.Context, contentID, moduleID uuid.UUID, req api.EditAttributesRequest) (*pagemodules.TreeSnapshot, error) {
	var tree pagemodules.TreeSnapshot
	path := "/contents/" + contentID.String() + "/modules/" + moduleID.String()
	if err := c.do(ctx, http.MethodPatch, path, req, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// GetData returns the data of one module
func (c *Client) GetData(ctx context.Context, moduleID uuid.UUID) (map[string]interface{}, error) {
	var data map[string]interface{}
	err := c.do(ctx, http.MethodGet, "/modules/"+moduleID.String()+"/data", nil, &data)
	return data, err
}

// SetData writes one data value
func (c *Client) SetData(ctx context.Context, moduleID uuid.UUID, key string, value interface{}) (*pagemodules.ModuleData, error) {
	var stored pagemodules.ModuleData
	path := "/modules/" + moduleID.String() + "/data/" + url.PathEscape(key)
	if err := c.do(ctx, http.MethodPut, path, api.UpsertDataRequest{Value: value}, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Publish forces a snapshot publish of a content entity's tree
func (c *Client) Publish(ctx context.Context, contentID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/contents/"+contentID.String()+"/tree/publish", nil, nil)
}
