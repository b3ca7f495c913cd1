package notion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jomei/notionapi"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"gmail-notion-relay/internal/config"
)

// ErrMissingAPIKey is returned before any request is sent without a key.
var ErrMissingAPIKey = errors.New("notion api key is not configured")

// Client calls the Notion API through notionapi. Every call takes the API key
// from the saved settings.
type Client struct {
	baseURL   *url.URL
	version   string
	transport http.RoundTripper
	timeout   time.Duration
	cb        *gobreaker.CircuitBreaker
}

// NewClient creates a Notion client
func NewClient(cfg *config.NotionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		logrus.Warnf("Invalid Notion base URL %q, using the public API", cfg.BaseURL)
		base = &url.URL{Scheme: "https", Host: "api.notion.com"}
	}

	cbSettings := gobreaker.Settings{
		Name:        "notion-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	}

	return &Client{
		baseURL:   base,
		version:   cfg.Version,
		transport: http.DefaultTransport,
		timeout:   timeout,
		cb:        gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// Filter restricts a query to pages whose url property contains a substring.
type Filter struct {
	Property    string
	URLContains string
}

// Query is a database query. Results are newest first.
type Query struct {
	PageSize int
	Filter   *Filter
}

// GetDatabase fetches a database schema.
func (c *Client) GetDatabase(ctx context.Context, apiKey, databaseID string) (*Database, error) {
	var remote *notionapi.Database
	err := c.call(ctx, apiKey, "get database", func(api *notionapi.Client) (err error) {
		remote, err = api.Database.Get(ctx, notionapi.DatabaseID(databaseID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get database %s: %w", databaseID, err)
	}

	db := &Database{ID: string(remote.ID), URL: remote.URL}
	for _, t := range remote.Title {
		db.Title += t.PlainText
	}

	// Descriptors read the JSON form of the typed configs, the same shape the
	// REST API returns for the fields notionapi models.
	var raw map[string]map[string]any
	if err := recode(remote.Properties, &raw); err != nil {
		return nil, fmt.Errorf("failed to read properties of database %s: %w", databaseID, err)
	}
	for name, prop := range raw {
		db.Properties = append(db.Properties, descriptorFrom(name, prop))
	}
	sortProperties(db.Properties)
	return db, nil
}

func descriptorFrom(name string, prop map[string]any) PropertyDescriptor {
	kind, _ := prop["type"].(string)
	id, _ := prop["id"].(string)
	if n, ok := prop["name"].(string); ok && n != "" {
		name = n
	}
	desc := PropertyDescriptor{
		ID:      id,
		Name:    name,
		Kind:    Kind(kind),
		IsTitle: kind == string(KindTitle),
	}
	desc.IsRequired = desc.IsTitle

	body, _ := prop[kind].(map[string]any)
	switch desc.Kind {
	case KindSelect, KindStatus, KindMultiSelect:
		options, _ := body["options"].([]any)
		for _, o := range options {
			opt, ok := o.(map[string]any)
			if !ok {
				continue
			}
			so := SelectOption{}
			so.ID, _ = opt["id"].(string)
			so.Name, _ = opt["name"].(string)
			so.Color, _ = opt["color"].(string)
			desc.Options = append(desc.Options, so)
		}
	case KindRelation:
		desc.RelationConfig = body
	}
	return desc
}

// QueryDatabase returns one page of results, newest first.
func (c *Client) QueryDatabase(ctx context.Context, apiKey, databaseID string, q Query) ([]Page, error) {
	req := &notionapi.DatabaseQueryRequest{
		PageSize: q.PageSize,
		Sorts: []notionapi.SortObject{{
			Timestamp: notionapi.TimestampCreated,
			Direction: notionapi.SortOrderDESC,
		}},
	}
	if q.Filter != nil {
		req.Filter = &notionapi.PropertyFilter{
			Property: q.Filter.Property,
			URL:      &notionapi.TextFilterCondition{Contains: q.Filter.URLContains},
		}
	}

	var resp *notionapi.DatabaseQueryResponse
	err := c.call(ctx, apiKey, "query database", func(api *notionapi.Client) (err error) {
		resp, err = api.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query database %s: %w", databaseID, err)
	}

	pages := make([]Page, 0, len(resp.Results))
	for i := range resp.Results {
		page, err := pageFrom(&resp.Results[i])
		if err != nil {
			return nil, fmt.Errorf("failed to read page of database %s: %w", databaseID, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// CreatePage creates a page in a database. It either returns the new page with
// its id and url or an error; there is no partial result.
func (c *Client) CreatePage(ctx context.Context, apiKey, databaseID string, properties map[string]PropertyValue) (*Page, error) {
	props, err := pageProperties(properties)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: props,
	}

	var created *notionapi.Page
	err = c.call(ctx, apiKey, "create page", func(api *notionapi.Client) (err error) {
		created, err = api.Page.Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if created == nil || created.ID == "" {
		return nil, fmt.Errorf("failed to create page: response carried no page id")
	}

	page, err := pageFrom(created)
	if err != nil {
		return nil, fmt.Errorf("failed to read created page: %w", err)
	}
	return &page, nil
}

// pageProperties turns formatted values into notionapi's typed properties.
// Each value is keyed by its kind, which doubles as the type tag notionapi
// decodes on.
func pageProperties(properties map[string]PropertyValue) (notionapi.Properties, error) {
	tagged := make(map[string]map[string]any, len(properties))
	for name, value := range properties {
		prop := make(map[string]any, len(value)+1)
		for kind, body := range value {
			prop[kind] = body
			prop["type"] = kind
		}
		tagged[name] = prop
	}
	var props notionapi.Properties
	if err := recode(tagged, &props); err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}
	return props, nil
}

func pageFrom(p *notionapi.Page) (Page, error) {
	page := Page{ID: string(p.ID), URL: p.URL}
	if !p.CreatedTime.IsZero() {
		page.CreatedTime = p.CreatedTime.UTC().Format(time.RFC3339Nano)
	}
	if len(p.Properties) > 0 {
		if err := recode(p.Properties, &page.Properties); err != nil {
			return Page{}, err
		}
	}
	return page, nil
}

// ListUsers returns every workspace user, following pagination cursors.
func (c *Client) ListUsers(ctx context.Context, apiKey string) ([]User, error) {
	var users []User
	cursor := ""
	for {
		var resp *notionapi.UsersListResponse
		err := c.call(ctx, apiKey, "list users", func(api *notionapi.Client) (err error) {
			resp, err = api.User.List(ctx, &notionapi.Pagination{
				StartCursor: notionapi.Cursor(cursor),
				PageSize:    100,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}

		for _, u := range resp.Results {
			user := User{ID: string(u.ID), Name: u.Name, Type: string(u.Type)}
			if u.Person != nil {
				user.Email = u.Person.Email
			}
			users = append(users, user)
		}
		next := string(resp.NextCursor)
		if !resp.HasMore || next == "" {
			return users, nil
		}
		cursor = next
	}
}

// AddURLProperty adds an empty url column to a database.
func (c *Client) AddURLProperty(ctx context.Context, apiKey, databaseID, name string) error {
	var configs notionapi.PropertyConfigs
	column := map[string]any{name: map[string]any{"type": string(KindURL), "url": map[string]any{}}}
	if err := recode(column, &configs); err != nil {
		return fmt.Errorf("failed to encode url property %q: %w", name, err)
	}

	err := c.call(ctx, apiKey, "update database", func(api *notionapi.Client) error {
		_, err := api.Database.Update(ctx, notionapi.DatabaseID(databaseID), &notionapi.DatabaseUpdateRequest{
			Properties: configs,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add url property %q: %w", name, err)
	}
	return nil
}

// State reports the circuit breaker state.
func (c *Client) State() string {
	return c.cb.State().String()
}

// call runs fn with a notionapi client bound to apiKey inside the circuit
// breaker. Non-2xx responses come back as *APIError whatever notionapi made of
// the body.
func (c *Client) call(ctx context.Context, apiKey, op string, fn func(api *notionapi.Client) error) error {
	if apiKey == "" {
		return ErrMissingAPIKey
	}

	_, err := c.cb.Execute(func() (interface{}, error) {
		rec := &responseRecorder{base: c.baseURL, version: c.version, next: c.transport}
		api := notionapi.NewClient(notionapi.Token(apiKey),
			notionapi.WithHTTPClient(&http.Client{Transport: rec, Timeout: c.timeout}))

		if err := fn(api); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if rec.status != 0 {
				return nil, decodeError(rec.status, rec.body)
			}
			return nil, err
		}
		return nil, nil
	})

	if IsUnavailable(err) {
		logrus.Warnf("Notion %s rejected by circuit breaker: %v", op, err)
	}
	return err
}

// responseRecorder points notionapi at the configured base URL and keeps the
// last failed response so it can be decoded into an APIError.
type responseRecorder struct {
	base    *url.URL
	version string
	next    http.RoundTripper

	status int
	body   []byte
}

func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = r.base.Scheme
	out.URL.Host = r.base.Host
	out.URL.Path = r.base.Path + req.URL.Path
	out.URL.RawPath = ""
	out.Host = r.base.Host
	if r.version != "" {
		out.Header.Set("Notion-Version", r.version)
	}

	resp, err := r.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		r.status = 0
		r.body = nil
		return resp, nil
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	r.status = resp.StatusCode
	r.body = data
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	apiErr.Status = status
	if apiErr.Code == "" {
		apiErr.Code = "http_" + fmt.Sprint(status)
	}
	return apiErr
}

// recode converts between notionapi's typed values and the JSON shapes used
// by this package.
func recode(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
