package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/canvas/internal/binding"
	"github.com/alfredjeanlab/canvas/internal/control"
	"github.com/alfredjeanlab/canvas/internal/evaluate"
	"github.com/alfredjeanlab/canvas/internal/layout"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/presence"
	"github.com/alfredjeanlab/canvas/internal/propagation"
)

// ActorHeader carries the caller's name on every request.
const ActorHeader = "X-Canvas-Actor"

// HTTPClient implements CanvasClient using the canvas HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request; when actor is non-empty it is sent in the
// X-Canvas-Actor header.
func NewHTTPClient(baseURL, token, actor string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		actor:      actor,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func dashboardPath(id string) string {
	return "/v1/dashboards/" + url.PathEscape(id)
}

func widgetPath(dashboardID, widgetID string) string {
	return dashboardPath(dashboardID) + "/widgets/" + url.PathEscape(widgetID)
}

// --- Datasets ---

func (c *HTTPClient) ListDatasets(ctx context.Context) ([]model.DatasetSummary, error) {
	var resp struct {
		Datasets []model.DatasetSummary `json:"datasets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/datasets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Datasets, nil
}

func (c *HTTPClient) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	var ds model.Dataset
	if err := c.doJSON(ctx, http.MethodGet, "/v1/datasets/"+url.PathEscape(id), nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// --- Dashboards ---

func (c *HTTPClient) CreateDashboard(ctx context.Context, d *model.Dashboard) (*model.Dashboard, error) {
	var out model.Dashboard
	if err := c.doJSON(ctx, http.MethodPost, "/v1/dashboards", d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListDashboards(ctx context.Context) ([]*model.DashboardSummary, error) {
	var resp struct {
		Dashboards []*model.DashboardSummary `json:"dashboards"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/dashboards", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Dashboards, nil
}

func (c *HTTPClient) GetDashboard(ctx context.Context, id string) (*model.Dashboard, error) {
	var out model.Dashboard
	if err := c.doJSON(ctx, http.MethodGet, dashboardPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteDashboard(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, dashboardPath(id), nil, nil)
}

func (c *HTTPClient) GetEvents(ctx context.Context, dashboardID string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, dashboardPath(dashboardID)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) Presence(ctx context.Context, dashboardID string) ([]presence.Entry, error) {
	var resp struct {
		Editors []presence.Entry `json:"editors"`
	}
	if err := c.doJSON(ctx, http.MethodGet, dashboardPath(dashboardID)+"/presence", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Editors, nil
}

// --- Widgets ---

func (c *HTTPClient) AddWidget(ctx context.Context, dashboardID string, w *model.Widget) (*model.Widget, error) {
	var out model.Widget
	if err := c.doJSON(ctx, http.MethodPost, dashboardPath(dashboardID)+"/widgets", w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListWidgets(ctx context.Context, dashboardID string) ([]*model.Widget, error) {
	var resp struct {
		Widgets []*model.Widget `json:"widgets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, dashboardPath(dashboardID)+"/widgets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Widgets, nil
}

func (c *HTTPClient) GetWidget(ctx context.Context, dashboardID, widgetID string) (*model.Widget, error) {
	var out model.Widget
	if err := c.doJSON(ctx, http.MethodGet, widgetPath(dashboardID, widgetID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateWidget(ctx context.Context, dashboardID, widgetID string, p *model.WidgetPatch) (*model.Widget, error) {
	var out model.Widget
	if err := c.doJSON(ctx, http.MethodPatch, widgetPath(dashboardID, widgetID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RemoveWidget(ctx context.Context, dashboardID, widgetID string) error {
	return c.doJSON(ctx, http.MethodDelete, widgetPath(dashboardID, widgetID), nil, nil)
}

func (c *HTTPClient) WidgetData(ctx context.Context, dashboardID, widgetID string) (*evaluate.Result, error) {
	var out evaluate.Result
	if err := c.doJSON(ctx, http.MethodGet, widgetPath(dashboardID, widgetID)+"/data", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Layout ---

type geometryResponse struct {
	Geometry map[string]model.Geometry `json:"geometry"`
}

func (c *HTTPClient) ApplyLayout(ctx context.Context, dashboardID string, changes []layout.Change) (map[string]model.Geometry, error) {
	body := map[string]any{"changes": changes}
	var resp geometryResponse
	if err := c.doJSON(ctx, http.MethodPost, dashboardPath(dashboardID)+"/layout", body, &resp); err != nil {
		return nil, err
	}
	return resp.Geometry, nil
}

func (c *HTTPClient) ApplyGesture(ctx context.Context, dashboardID string, g layout.Gesture, m layout.Metrics) (map[string]model.Geometry, error) {
	body := struct {
		layout.Gesture
		layout.Metrics
	}{g, m}
	var resp geometryResponse
	if err := c.doJSON(ctx, http.MethodPost, dashboardPath(dashboardID)+"/gestures", body, &resp); err != nil {
		return nil, err
	}
	return resp.Geometry, nil
}

func (c *HTTPClient) MoveWidget(ctx context.Context, dashboardID, widgetID string, x, y int) (model.Geometry, error) {
	body := map[string]int{"x": x, "y": y}
	var resp geometryResponse
	if err := c.doJSON(ctx, http.MethodPost, widgetPath(dashboardID, widgetID)+"/move", body, &resp); err != nil {
		return model.Geometry{}, err
	}
	return resp.Geometry[widgetID], nil
}

func (c *HTTPClient) ResizeWidget(ctx context.Context, dashboardID, widgetID string, width, height int) (model.Geometry, error) {
	body := map[string]int{"width": width, "height": height}
	var resp geometryResponse
	if err := c.doJSON(ctx, http.MethodPost, widgetPath(dashboardID, widgetID)+"/resize", body, &resp); err != nil {
		return model.Geometry{}, err
	}
	return resp.Geometry[widgetID], nil
}

// --- Binding ---

func (c *HTTPClient) editBinding(ctx context.Context, method, path string, body any) (*model.Binding, error) {
	var out model.Binding
	if err := c.doJSON(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SetDimension(ctx context.Context, dashboardID, widgetID, field string) (*model.Binding, error) {
	return c.editBinding(ctx, http.MethodPut, widgetPath(dashboardID, widgetID)+"/binding/dimension",
		map[string]string{"field": field})
}

func (c *HTTPClient) SetDataset(ctx context.Context, dashboardID, widgetID, datasetID string) (*model.Binding, error) {
	return c.editBinding(ctx, http.MethodPut, widgetPath(dashboardID, widgetID)+"/binding/dataset",
		map[string]string{"dataset_id": datasetID})
}

func (c *HTTPClient) AddMeasure(ctx context.Context, dashboardID, widgetID, field string) (*model.Binding, error) {
	return c.editBinding(ctx, http.MethodPost, widgetPath(dashboardID, widgetID)+"/binding/measures",
		map[string]string{"field": field})
}

func (c *HTTPClient) UpdateMeasure(ctx context.Context, dashboardID, widgetID, field string, p binding.MeasurePatch) (*model.Binding, error) {
	return c.editBinding(ctx, http.MethodPatch, widgetPath(dashboardID, widgetID)+"/binding/measures/"+url.PathEscape(field), p)
}

func (c *HTTPClient) RemoveMeasure(ctx context.Context, dashboardID, widgetID, field string) (*model.Binding, error) {
	return c.editBinding(ctx, http.MethodDelete, widgetPath(dashboardID, widgetID)+"/binding/measures/"+url.PathEscape(field), nil)
}

// --- Controls ---

func (c *HTTPClient) editControl(ctx context.Context, method, path string, body any) (*model.ControlConfig, error) {
	var out model.ControlConfig
	if err := c.doJSON(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) AddTarget(ctx context.Context, dashboardID, widgetID string, t model.Target) (*model.ControlConfig, error) {
	return c.editControl(ctx, http.MethodPost, widgetPath(dashboardID, widgetID)+"/targets", t)
}

func (c *HTTPClient) RemoveTarget(ctx context.Context, dashboardID, widgetID, targetID string) (*model.ControlConfig, error) {
	return c.editControl(ctx, http.MethodDelete, widgetPath(dashboardID, widgetID)+"/targets/"+url.PathEscape(targetID), nil)
}

func (c *HTTPClient) SetColumnMapping(ctx context.Context, dashboardID, widgetID, targetID string, mapping map[string]string) (*model.ControlConfig, error) {
	return c.editControl(ctx, http.MethodPut,
		widgetPath(dashboardID, widgetID)+"/targets/"+url.PathEscape(targetID)+"/mapping", mapping)
}

func (c *HTTPClient) Sync(ctx context.Context, dashboardID, widgetID, peerID string) (*model.ControlConfig, error) {
	return c.editControl(ctx, http.MethodPost, widgetPath(dashboardID, widgetID)+"/sync",
		map[string]string{"peer_id": peerID})
}

func (c *HTTPClient) Unsync(ctx context.Context, dashboardID, widgetID, peerID string) (*model.ControlConfig, error) {
	return c.editControl(ctx, http.MethodDelete, widgetPath(dashboardID, widgetID)+"/sync/"+url.PathEscape(peerID), nil)
}

func (c *HTTPClient) SetSource(ctx context.Context, dashboardID, widgetID string, s control.Source) (*model.ControlConfig, error) {
	return c.editControl(ctx, http.MethodPut, widgetPath(dashboardID, widgetID)+"/source", s)
}

func (c *HTTPClient) Options(ctx context.Context, dashboardID, widgetID string) ([]any, error) {
	var resp struct {
		Values []any `json:"values"`
	}
	if err := c.doJSON(ctx, http.MethodGet, widgetPath(dashboardID, widgetID)+"/options", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (c *HTTPClient) SetValue(ctx context.Context, dashboardID, widgetID string, value any) (*propagation.Pass, error) {
	var pass propagation.Pass
	body := map[string]any{"value": value}
	if err := c.doJSON(ctx, http.MethodPost, widgetPath(dashboardID, widgetID)+"/value", body, &pass); err != nil {
		return nil, err
	}
	return &pass, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set(ActorHeader, c.actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
