package notion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmail-notion-relay/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.NotionConfig{BaseURL: srv.URL, Version: "2022-06-28", Timeout: 5 * time.Second})
}

func TestGetDatabaseOrdersPropertiesTitleFirst(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/databases/db1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		io.WriteString(w, `{
			"id": "db1",
			"url": "https://notion.so/db1",
			"title": [{"plain_text": "Inbox"}, {"plain_text": " log"}],
			"properties": {
				"Stage": {"id": "s1", "name": "Stage", "type": "select", "select": {"options": [{"id": "o1", "name": "New", "color": "red"}]}},
				"Link": {"id": "l1", "name": "Link", "type": "url", "url": {}},
				"Name": {"id": "title", "name": "Name", "type": "title", "title": {}},
				"Project": {"id": "r1", "name": "Project", "type": "relation", "relation": {"database_id": "abc", "type": "single_property"}}
			}
		}`)
	})

	db, err := client.GetDatabase(context.Background(), "secret", "db1")
	require.NoError(t, err)

	assert.Equal(t, "Inbox log", db.Title)
	require.Len(t, db.Properties, 4)
	names := []string{}
	for _, p := range db.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Name", "Link", "Project", "Stage"}, names)
	assert.True(t, db.Properties[0].IsTitle)
	assert.True(t, db.Properties[0].IsRequired)
	assert.Equal(t, []SelectOption{{ID: "o1", Name: "New", Color: "red"}}, db.Properties[3].Options)
	assert.Equal(t, "abc", db.Properties[2].RelationConfig["database_id"])

	urls := db.URLProperties()
	require.Len(t, urls, 1)
	assert.Equal(t, "Link", urls[0].Name)

	p, ok := db.Property("s1")
	require.True(t, ok)
	assert.Equal(t, "Stage", p.Name)
	p, ok = db.Property("Link")
	require.True(t, ok)
	assert.Equal(t, KindURL, p.Kind)
}

func TestQueryDatabaseSendsContainsFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/databases/db1/query", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(1), body["page_size"])
		filter := body["filter"].(map[string]any)
		assert.Equal(t, "Link", filter["property"])
		assert.Equal(t, "18c2f", filter["url"].(map[string]any)["contains"])
		sorts := body["sorts"].([]any)
		require.Len(t, sorts, 1)
		assert.Equal(t, "created_time", sorts[0].(map[string]any)["timestamp"])
		assert.Equal(t, "descending", sorts[0].(map[string]any)["direction"])

		io.WriteString(w, `{"results": [{"id": "p1", "url": "https://notion.so/p1", "properties": {
			"Name": {"type": "title", "title": [{"plain_text": "Invoice"}]},
			"Link": {"type": "url", "url": "https://mail.google.com/mail/u/0/#inbox/18c2f"}
		}}], "has_more": false}`)
	})

	pages, err := client.QueryDatabase(context.Background(), "secret", "db1", Query{
		PageSize: 1,
		Filter:   &Filter{Property: "Link", URLContains: "18c2f"},
	})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Invoice", pages[0].Title())
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/18c2f", pages[0].URLValue("Link"))
	assert.Equal(t, "", pages[0].URLValue("Missing"))
}

func TestCreatePage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/pages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "db1", body["parent"].(map[string]any)["database_id"])
		props := body["properties"].(map[string]any)
		assert.Equal(t, "jane@co.com", props["Sender"].(map[string]any)["email"])
		title := props["Title"].(map[string]any)["title"].([]any)
		require.Len(t, title, 1)
		assert.Equal(t, "Invoice", title[0].(map[string]any)["text"].(map[string]any)["content"])
		stage := props["Stage"].(map[string]any)["status"].(map[string]any)
		assert.Equal(t, "New", stage["name"])

		io.WriteString(w, `{"id": "page1", "url": "https://notion.so/page1", "created_time": "2025-01-01T00:00:00.000Z"}`)
	})

	page, err := client.CreatePage(context.Background(), "secret", "db1", map[string]PropertyValue{
		"Title":  Format("Invoice", KindTitle),
		"Sender": Format("jane@co.com", KindEmail),
		"Stage":  Format("New", KindStatus),
	})
	require.NoError(t, err)
	assert.Equal(t, "page1", page.ID)
	assert.Equal(t, "https://notion.so/page1", page.URL)
	assert.Equal(t, "2025-01-01T00:00:00Z", page.CreatedTime)
}

func TestAPIErrorIsDecoded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"object": "error", "status": 400, "code": "validation_error", "message": "bad filter"}`)
	})

	_, err := client.QueryDatabase(context.Background(), "secret", "db1", Query{PageSize: 1})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, "bad filter", apiErr.Message)
	assert.True(t, IsValidationError(err))
	assert.False(t, apiErr.Retryable())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 12 {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"status": 404, "code": "object_not_found", "message": "missing"}`)
			return
		}
		io.WriteString(w, `{"id": "db1", "properties": {}}`)
	})

	for i := 0; i < 12; i++ {
		_, err := client.GetDatabase(context.Background(), "secret", "db1")
		require.Error(t, err)
	}
	assert.Equal(t, "closed", client.State())

	_, err := client.GetDatabase(context.Background(), "secret", "db1")
	assert.NoError(t, err)
}

func TestServerErrorsTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 6; i++ {
		_, err := client.GetDatabase(context.Background(), "secret", "db1")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "Bad Gateway", apiErr.Message)
	}
	assert.Equal(t, "open", client.State())
}

func TestListUsersFollowsCursor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users", r.URL.Path)
		if r.URL.Query().Get("start_cursor") == "" {
			io.WriteString(w, `{"results": [{"id": "u1", "name": "Jane", "type": "person", "person": {"email": "jane@co.com"}}], "has_more": true, "next_cursor": "c2"}`)
			return
		}
		assert.Equal(t, "c2", r.URL.Query().Get("start_cursor"))
		io.WriteString(w, `{"results": [{"id": "b1", "name": "Bot", "type": "bot"}], "has_more": false}`)
	})

	users, err := client.ListUsers(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, []User{
		{ID: "u1", Name: "Jane", Email: "jane@co.com", Type: "person"},
		{ID: "b1", Name: "Bot", Type: "bot"},
	}, users)
}

func TestAddURLProperty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/databases/db1", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		props := body["properties"].(map[string]any)
		column := props["Email Link"].(map[string]any)
		assert.Equal(t, map[string]any{}, column["url"])
		io.WriteString(w, `{"object": "database", "id": "db1", "properties": {}}`)
	})

	require.NoError(t, client.AddURLProperty(context.Background(), "secret", "db1", "Email Link"))
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(&config.NotionConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := client.GetDatabase(context.Background(), "", "db1")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRequestsFollowBaseURLPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/proxy/v1/databases/db1", r.URL.Path)
		io.WriteString(w, `{"id": "db1", "properties": {}}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(&config.NotionConfig{BaseURL: srv.URL + "/proxy/", Version: "2022-06-28"})
	db, err := client.GetDatabase(context.Background(), "secret", "db1")
	require.NoError(t, err)
	assert.Equal(t, "db1", db.ID)
}

func TestCancelledContextIsNotAnAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": "db1", "properties": {}}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetDatabase(ctx, "secret", "db1")
	assert.ErrorIs(t, err, context.Canceled)
}
