package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL         string
	InstructorToken string
	HTTP            *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Catalog(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", nil, &out, "")
	return out, err
}

func (c *Client) Join(ctx context.Context, team string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/teams", map[string]any{
		"name": team,
	}, &out, "")
	return out, err
}

func (c *Client) Team(ctx context.Context, team string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, teamPath(team, ""), nil, &out, "")
	return out, err
}

func (c *Client) History(ctx context.Context, team string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, teamPath(team, "history"), nil, &out, "")
	return out, err
}

func (c *Client) SubmitRecipe(ctx context.Context, team, styleID, bean, milk, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, teamPath(team, "recipe"), map[string]any{
		"style_id": styleID,
		"bean":     bean,
		"milk":     milk,
	}, &out, idem)
	return out, err
}

func (c *Client) SubmitOverheads(ctx context.Context, team string, staff, operating, marketing int64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, teamPath(team, "overheads"), map[string]any{
		"staff":     staff,
		"operating": operating,
		"marketing": marketing,
	}, &out, idem)
	return out, err
}

func (c *Client) SubmitStrategy(ctx context.Context, team string, forecast, margin int64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, teamPath(team, "strategy"), map[string]any{
		"sales_forecast": forecast,
		"profit_margin":  margin,
	}, &out, idem)
	return out, err
}

func (c *Client) SubmitPrice(ctx context.Context, team string, finalPrice int64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, teamPath(team, "price"), map[string]any{
		"final_price": finalPrice,
	}, &out, idem)
	return out, err
}

func (c *Client) CrisisEvent(ctx context.Context, team string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, teamPath(team, "crisis"), nil, &out, "")
	return out, err
}

func (c *Client) SubmitCrisisChoice(ctx context.Context, team, choice, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, teamPath(team, "crisis"), map[string]any{
		"choice": choice,
	}, &out, idem)
	return out, err
}

func (c *Client) Roster(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/roster", nil, &out, "")
	return out, err
}

func (c *Client) SetStage(ctx context.Context, stage int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/stage", map[string]any{
		"stage": stage,
	}, &out, "")
	return out, err
}

func (c *Client) Reset(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/reset", map[string]any{}, &out, "")
	return out, err
}

func teamPath(team, rest string) string {
	p := "/v1/teams/" + url.PathEscape(team)
	if rest != "" {
		p += "/" + rest
	}
	return p
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.InstructorToken != "" {
		req.Header.Set("X-Instructor-Token", c.InstructorToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
