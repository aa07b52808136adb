package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MovePath   = "/action_move_mpr/"
	AssignPath = "/action_update_mpr/"
	RenamePath = "/action_update_meal_group_name/"
	TogglePath = "/action_toggle_mpr/"

	CSRFHeader = "X-CSRFToken"
	CSRFCookie = "csrftoken"

	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// MoveRequest is the body of a full reorder/move call.
type MoveRequest struct {
	ToGroup   string
	FromGroup string
	ToOrder   []string
	FromOrder []string
}

// Form encodes the request. from_group is sent only when it differs from to_group and
// from_order only when non-empty.
func (r MoveRequest) Form() url.Values {
	v := url.Values{}
	v.Set("to_group", r.ToGroup)
	if r.FromGroup != "" && r.FromGroup != r.ToGroup {
		v.Set("from_group", r.FromGroup)
	}
	v.Set("to_order", strings.Join(r.ToOrder, ","))
	if len(r.FromOrder) > 0 {
		v.Set("from_order", strings.Join(r.FromOrder, ","))
	}
	return v
}

func (r MoveRequest) Validate() error {
	if strings.TrimSpace(r.ToGroup) == "" {
		return errors.New("persist: move: missing to_group")
	}
	return nil
}

// ParseMoveForm is the inverse of MoveRequest.Form.
func ParseMoveForm(v url.Values) (MoveRequest, error) {
	r := MoveRequest{
		ToGroup:   strings.TrimSpace(v.Get("to_group")),
		FromGroup: strings.TrimSpace(v.Get("from_group")),
		ToOrder:   SplitIDs(v.Get("to_order")),
		FromOrder: SplitIDs(v.Get("from_order")),
	}
	return r, r.Validate()
}

// SplitIDs splits a comma-joined id list, dropping blanks.
func SplitIDs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// StatusError is a non-2xx response from the planner server.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if b := strings.TrimSpace(e.Body); b != "" {
		msg += ": " + b
	}
	return msg
}

// Client calls the planner server's persistence endpoints. Responses carry no body the
// client uses.
type Client struct {
	BaseURL   *url.URL
	HTTP      *http.Client
	CSRFToken string
	Timeout   time.Duration
	Logger    *zap.Logger
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("persist: server url is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("persist: server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("persist: server url must be http(s): %s", baseURL)
	}
	c := &Client{BaseURL: u, HTTP: http.DefaultClient, Timeout: defaultTimeout, Logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.HTTP = h
		}
	}
}

func WithCSRFToken(tok string) Option {
	return func(c *Client) { c.CSRFToken = strings.TrimSpace(tok) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.Logger = l
		}
	}
}

// MoveItems posts a full reorder/move to /action_move_mpr/.
func (c *Client) MoveItems(ctx context.Context, req MoveRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return c.post(ctx, MovePath, req.Form())
}

// AssignItem posts a single-item move to /action_update_mpr/{itemId}/{groupId}/.
func (c *Client) AssignItem(ctx context.Context, itemID, groupID string) error {
	itemID = strings.TrimSpace(itemID)
	groupID = strings.TrimSpace(groupID)
	if itemID == "" || groupID == "" {
		return errors.New("persist: assign: missing item or group id")
	}
	if strings.Contains(itemID, "/") || strings.Contains(groupID, "/") {
		return errors.New("persist: assign: ids must not contain '/'")
	}
	return c.post(ctx, AssignPath+itemID+"/"+groupID+"/", nil)
}

// RenameGroup posts a new group name to /action_update_meal_group_name/{groupId}/.
func (c *Client) RenameGroup(ctx context.Context, groupID, name string) error {
	groupID = strings.TrimSpace(groupID)
	name = strings.TrimSpace(name)
	if groupID == "" || strings.Contains(groupID, "/") {
		return fmt.Errorf("persist: rename: bad group id %q", groupID)
	}
	if name == "" {
		return errors.New("persist: rename: name required")
	}
	return c.post(ctx, RenamePath+groupID+"/", url.Values{"meal_group_name": {name}})
}

// ToggleRecipe adds recipeID to the group, or takes it out when the group already holds it.
func (c *Client) ToggleRecipe(ctx context.Context, groupID, recipeID string) error {
	groupID = strings.TrimSpace(groupID)
	recipeID = strings.TrimSpace(recipeID)
	if groupID == "" || recipeID == "" || strings.Contains(groupID+recipeID, "/") {
		return fmt.Errorf("persist: toggle: bad ids %q/%q", groupID, recipeID)
	}
	return c.post(ctx, TogglePath+groupID+"/"+recipeID+"/", nil)
}

// URL joins an endpoint path onto BaseURL, keeping any path prefix the base carries.
func (c *Client) URL(path string) string {
	return c.BaseURL.JoinPath(path).String()
}

func (c *Client) post(ctx context.Context, path string, form url.Values) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	target := c.URL(path)
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	if c.CSRFToken != "" {
		req.Header.Set(CSRFHeader, c.CSRFToken)
		req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: c.CSRFToken})
		req.Header.Set("Referer", c.BaseURL.String())
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Warn("persistence call failed",
			zap.String("url", target),
			zap.String("request_id", reqID),
			zap.Error(err))
		return fmt.Errorf("persist: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{Method: http.MethodPost, URL: target, StatusCode: resp.StatusCode, Body: string(b)}
		c.Logger.Warn("persistence call rejected",
			zap.String("url", target),
			zap.String("request_id", reqID),
			zap.Int("status", resp.StatusCode))
		return serr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.Logger.Debug("persistence call ok",
		zap.String("url", target),
		zap.String("request_id", reqID),
		zap.Duration("took", time.Since(start)))
	return nil
}
