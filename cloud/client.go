package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yeremiapane/pos-sync/models"
)

// ErrNotFound marks a 404 from the backend. Optional sync domains treat it
// as a benign empty state, not a failure.
var ErrNotFound = errors.New("not found")

// Client is the request/response backend client. It is the second tier of
// order submission (after realtime, before local-only) and the transport
// for bulk domain syncs.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// SubmitOrderResponse is the direct-call equivalent of the realtime
// order_created push.
type SubmitOrderResponse struct {
	AggregatorOrderID string              `json:"aggregatorOrderId"`
	OrderNumber       string              `json:"orderNumber"`
	KitchenOrder      models.KitchenOrder `json:"kitchenOrder"`
}

// SubmitOrder sends an order over plain HTTP. Used when the realtime
// session is down at submission time.
func (c *Client) SubmitOrder(ctx context.Context, tenantID string, order models.KitchenOrder) (*SubmitOrderResponse, error) {
	var resp SubmitOrderResponse
	err := c.post(ctx, "/v1/tenants/"+tenantID+"/orders", order, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// FloorPlan bundles the two floor-plan tables the backend syncs together.
type FloorPlan struct {
	Sections []models.FloorSection `json:"sections"`
	Tables   []models.FloorTable   `json:"tables"`
}

// Menu bundles categories and items.
type Menu struct {
	Categories []models.MenuCategory `json:"categories"`
	Items      []models.MenuItem     `json:"items"`
}

func (c *Client) FetchSettings(ctx context.Context, tenantID string) (*models.RestaurantSettings, error) {
	var settings models.RestaurantSettings
	if err := c.get(ctx, "/v1/tenants/"+tenantID+"/settings", &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) FetchStaff(ctx context.Context, tenantID string) ([]models.StaffUser, error) {
	var staff []models.StaffUser
	if err := c.get(ctx, "/v1/tenants/"+tenantID+"/staff", &staff); err != nil {
		return nil, err
	}
	return staff, nil
}

func (c *Client) FetchFloorPlan(ctx context.Context, tenantID string) (*FloorPlan, error) {
	var plan FloorPlan
	if err := c.get(ctx, "/v1/tenants/"+tenantID+"/floor-plan", &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) FetchMenu(ctx context.Context, tenantID string) (*Menu, error) {
	var menu Menu
	if err := c.get(ctx, "/v1/tenants/"+tenantID+"/menu", &menu); err != nil {
		return nil, err
	}
	return &menu, nil
}

func (c *Client) FetchPricingOverrides(ctx context.Context, tenantID string) ([]models.PricingOverride, error) {
	var overrides []models.PricingOverride
	if err := c.get(ctx, "/v1/tenants/"+tenantID+"/pricing-overrides", &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (c *Client) FetchPrinterConfigs(ctx context.Context, tenantID string) ([]models.PrinterConfig, error) {
	var configs []models.PrinterConfig
	if err := c.get(ctx, "/v1/tenants/"+tenantID+"/printer-configs", &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

func (c *Client) FetchAggregatorRules(ctx context.Context, tenantID string) ([]models.AggregatorRule, error) {
	var rules []models.AggregatorRule
	if err := c.get(ctx, "/v1/tenants/"+tenantID+"/aggregator-rules", &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) PushSettings(ctx context.Context, tenantID string, settings *models.RestaurantSettings) error {
	return c.post(ctx, "/v1/tenants/"+tenantID+"/settings", settings, nil)
}

func (c *Client) PushStaff(ctx context.Context, tenantID string, staff []models.StaffUser) error {
	return c.post(ctx, "/v1/tenants/"+tenantID+"/staff", staff, nil)
}

func (c *Client) PushFloorPlan(ctx context.Context, tenantID string, plan *FloorPlan) error {
	return c.post(ctx, "/v1/tenants/"+tenantID+"/floor-plan", plan, nil)
}

func (c *Client) PushMenu(ctx context.Context, tenantID string, menu *Menu) error {
	return c.post(ctx, "/v1/tenants/"+tenantID+"/menu", menu, nil)
}

func (c *Client) PushPricingOverrides(ctx context.Context, tenantID string, overrides []models.PricingOverride) error {
	return c.post(ctx, "/v1/tenants/"+tenantID+"/pricing-overrides", overrides, nil)
}

func (c *Client) PushPrinterConfigs(ctx context.Context, tenantID string, configs []models.PrinterConfig) error {
	return c.post(ctx, "/v1/tenants/"+tenantID+"/printer-configs", configs, nil)
}

func (c *Client) PushAggregatorRules(ctx context.Context, tenantID string, rules []models.AggregatorRule) error {
	return c.post(ctx, "/v1/tenants/"+tenantID+"/aggregator-rules", rules, nil)
}
