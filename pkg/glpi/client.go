package glpi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
)

// Client pushes audited printers to the GLPI REST API.
type Client struct {
	cfg        config.GLPIConfig
	baseURL    string
	httpClient *http.Client
	token      string
	tokenUntil time.Time
	mu         sync.Mutex
}

// NewClient builds a GLPI client.
func NewClient(cfg config.GLPIConfig) *Client {
	return &Client{cfg: cfg, baseURL: sanitizeBaseURL(cfg.BaseURL), httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// Printer is the GLPI Printer item built from a report row. Host is not
// sent as a field; it is encoded in the comment and used to find the item
// again on later runs.
type Printer struct {
	Name    string `json:"name"`
	Comment string `json:"comment"`
	Host    string `json:"-"`
}

// PrinterFromRow describes row as a GLPI printer.
func PrinterFromRow(row inventory.ReportRow) Printer {
	rec := inventory.PrinterRecord{Name: row.PrinterName, Port: row.PrinterIP}
	return Printer{
		Name:    row.PrinterName,
		Comment: fmt.Sprintf("host=%s port=%s type=%s", row.Hostname, row.PrinterIP, inventory.Classify(rec)),
		Host:    row.Hostname,
	}
}

type existingPrinter struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

// PushRows upserts every non-sentinel row and returns how many were accepted.
// Individual failures are collected and returned together.
func (c *Client) PushRows(ctx context.Context, rows []inventory.ReportRow) (int, error) {
	pushed := 0
	var errs []error
	for _, row := range rows {
		if row.IsSentinel() {
			continue
		}
		if _, err := c.UpsertPrinter(ctx, PrinterFromRow(row)); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", row.Hostname, row.PrinterName, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		pushed++
	}
	return pushed, errors.Join(errs...)
}

// UpsertPrinter updates the item recorded for the same printer on the same
// host, or creates one when none exists. It reports whether it created.
func (c *Client) UpsertPrinter(ctx context.Context, p Printer) (bool, error) {
	if c.baseURL == "" {
		return false, fmt.Errorf("glpi base url not configured")
	}
	if err := c.ensureAuth(ctx); err != nil {
		return false, err
	}
	id, err := c.findPrinter(ctx, p)
	if err != nil {
		return false, fmt.Errorf("glpi printer lookup failed: %w", err)
	}
	if id == 0 {
		if err := c.do(ctx, http.MethodPost, c.printerEndpoint(), c.itemPayload(p), nil); err != nil {
			return false, fmt.Errorf("glpi printer create failed: %w", err)
		}
		return true, nil
	}
	endpoint := fmt.Sprintf("%s/%d", c.printerEndpoint(), id)
	if err := c.do(ctx, http.MethodPut, endpoint, c.itemPayload(p), nil); err != nil {
		return false, fmt.Errorf("glpi printer update %d failed: %w", id, err)
	}
	return false, nil
}

// findPrinter returns the id of the item with p's name whose comment names
// p's host, or 0.
func (c *Client) findPrinter(ctx context.Context, p Printer) (int, error) {
	q := url.Values{}
	if c.useOAuth() {
		q.Set("filter", `name=="`+strings.ReplaceAll(p.Name, `"`, `\"`)+`"`)
	} else {
		q.Set("searchText[name]", p.Name)
		q.Set("range", "0-999")
	}
	var found []existingPrinter
	if err := c.do(ctx, http.MethodGet, c.printerEndpoint()+"?"+q.Encode(), nil, &found); err != nil {
		return 0, err
	}
	for _, e := range found {
		if e.Name == p.Name && sameHost(e.Comment, p.Host) {
			return e.ID, nil
		}
	}
	return 0, nil
}

func sameHost(comment, host string) bool {
	return strings.HasPrefix(comment, "host="+host+" ")
}

func (c *Client) printerEndpoint() string {
	if c.useOAuth() {
		return c.baseURL + "/Assets/Printer"
	}
	return c.baseURL + "/Printer"
}

func (c *Client) itemPayload(p Printer) interface{} {
	if c.useOAuth() {
		return p
	}
	return map[string]Printer{"input": p}
}

// do sends an authenticated request, decoding a JSON response into out when
// out is non-nil.
func (c *Client) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.useOAuth() {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.Header.Set("Session-Token", c.token)
		if c.cfg.AppToken != "" {
			req.Header.Set("App-Token", c.cfg.AppToken)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ensureAuth(ctx context.Context) error {
	if c.useOAuth() {
		return c.ensureOAuthToken(ctx)
	}
	return c.ensureLegacySession(ctx)
}

func (c *Client) ensureLegacySession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return nil
	}
	if c.cfg.UserToken == "" {
		return fmt.Errorf("glpi user token missing")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/initSession", c.baseURL), nil)
	if err != nil {
		return err
	}
	if c.cfg.AppToken != "" {
		req.Header.Set("App-Token", c.cfg.AppToken)
	}
	req.Header.Set("Authorization", "user_token "+c.cfg.UserToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("glpi init session failed: %s: %s", resp.Status, string(body))
	}
	var payload struct {
		SessionToken string `json:"session_token"`
		Message      string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	if payload.SessionToken == "" {
		return fmt.Errorf("glpi session token empty: %s", payload.Message)
	}
	c.token = payload.SessionToken
	return nil
}

func (c *Client) ensureOAuthToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Until(c.tokenUntil) > 30*time.Second {
		return nil
	}
	tokenURL, err := oauthTokenURL(c.baseURL)
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.cfg.OAuth.ClientID)
	form.Set("client_secret", c.cfg.OAuth.ClientSecret)
	form.Set("username", c.cfg.OAuth.Username)
	form.Set("password", c.cfg.OAuth.Password)
	scope := c.cfg.OAuth.Scope
	if scope == "" {
		scope = "api"
	}
	form.Set("scope", scope)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("glpi oauth token request failed: %s: %s", resp.Status, string(body))
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("glpi oauth access token empty")
	}
	if !strings.EqualFold(payload.TokenType, "bearer") && payload.TokenType != "" {
		return fmt.Errorf("glpi oauth unexpected token type %q", payload.TokenType)
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}
	c.token = payload.AccessToken
	c.tokenUntil = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return nil
}

func (c *Client) useOAuth() bool {
	if c.cfg.OAuth == nil {
		return false
	}
	return c.cfg.OAuth.ClientID != "" && c.cfg.OAuth.ClientSecret != "" && c.cfg.OAuth.Username != ""
}

func oauthTokenURL(base string) (string, error) {
	const marker = "/api.php"
	idx := strings.Index(base, marker)
	if idx == -1 {
		return "", fmt.Errorf("glpi oauth requires api.php endpoint, got %s", base)
	}
	return base[:idx+len(marker)] + "/token", nil
}

func sanitizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	return strings.TrimRight(trimmed, "/")
}
