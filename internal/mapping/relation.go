package mapping

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/model"
	"gmail-notion-relay/internal/notion"
)

// relationPageLimit caps the pages offered for a relation.
const relationPageLimit = 100

// RelationExtractor finds the related database id in a relation config.
type RelationExtractor struct {
	Name    string
	Extract func(cfg map[string]any) (string, bool)
}

var idPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}`)

// RelationExtractors run in order; the first that finds an id wins. Notion
// reports the target as database_id or data_source_id depending on API
// version, and nests it elsewhere for some dual relations.
var RelationExtractors = []RelationExtractor{
	{Name: "database_id", Extract: stringField("database_id")},
	{Name: "data_source_id", Extract: stringField("data_source_id")},
	{Name: "id_pattern", Extract: idInConfig},
}

// RelatedDatabaseID resolves the database a relation property points at.
func RelatedDatabaseID(desc notion.PropertyDescriptor) (string, bool) {
	if desc.RelationConfig == nil {
		return "", false
	}
	for _, ex := range RelationExtractors {
		if id, ok := ex.Extract(desc.RelationConfig); ok {
			return id, true
		}
	}
	return "", false
}

func stringField(key string) func(map[string]any) (string, bool) {
	return func(cfg map[string]any) (string, bool) {
		s, _ := cfg[key].(string)
		if s = strings.TrimSpace(s); s == "" {
			return "", false
		}
		return normalizeID(s), true
	}
}

func idInConfig(cfg map[string]any) (string, bool) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", false
	}
	m := idPattern.Find(data)
	if m == nil {
		return "", false
	}
	return normalizeID(string(m)), true
}

// normalizeID renders uuid-shaped ids in canonical dashed form.
func normalizeID(s string) string {
	if id, err := uuid.Parse(s); err == nil {
		return id.String()
	}
	return s
}

// RelationHandler links pages of the related database chosen at
// configuration time.
type RelationHandler struct {
	pages PageLister
}

// NewRelationHandler creates a relation handler backed by pages.
func NewRelationHandler(pages PageLister) *RelationHandler {
	return &RelationHandler{pages: pages}
}

func (h *RelationHandler) Configure(desc notion.PropertyDescriptor, form url.Values) (Mapping, error) {
	m := baseMapping(desc, form)
	seen := map[string]bool{}
	for _, v := range form[FormSelectedPages] {
		ref, ok := parsePageRef(v)
		if !ok || seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		m.SelectedPages = append(m.SelectedPages, ref)
	}
	if m.Enabled && len(m.SelectedPages) == 0 {
		return Mapping{}, fmt.Errorf("select at least one page for %s", desc.Name)
	}
	return m, nil
}

// parsePageRef reads "id" or "id|title".
func parsePageRef(v string) (model.PageRef, bool) {
	id, title, _ := strings.Cut(v, "|")
	id = strings.TrimSpace(id)
	if id == "" {
		return model.PageRef{}, false
	}
	return model.PageRef{ID: normalizeID(id), Title: strings.TrimSpace(title)}, true
}

func (h *RelationHandler) Widgets(ctx context.Context, apiKey string, desc notion.PropertyDescriptor, m *Mapping) []Widget {
	widgets := []Widget{enabledWidget(m, false)}

	dbID, ok := RelatedDatabaseID(desc)
	if !ok {
		return append(widgets, Widget{Type: WidgetInfo, Label: "The related database could not be determined"})
	}
	if h.pages == nil {
		return append(widgets, Widget{Type: WidgetInfo, Label: "Related pages are unavailable"})
	}

	pages, err := h.pages.QueryDatabase(ctx, apiKey, dbID, notion.Query{PageSize: relationPageLimit})
	if err != nil {
		logrus.Warnf("Failed to list related pages for %s: %v", desc.Name, err)
		return append(widgets, Widget{Type: WidgetInfo, Label: "Could not load related pages"})
	}

	var selected []string
	if m != nil {
		for _, p := range m.SelectedPages {
			selected = append(selected, p.ID)
		}
	}
	options := make([]WidgetOption, 0, len(pages))
	for _, p := range pages {
		title := p.Title()
		if title == "" {
			title = "Untitled"
		}
		options = append(options, WidgetOption{
			Value:    p.ID + "|" + title,
			Label:    title,
			Selected: contains(selected, normalizeID(p.ID)),
		})
	}
	return append(widgets, Widget{Type: WidgetMultiSelect, Name: FormSelectedPages, Label: "Pages", Value: selected, Options: options})
}

func (h *RelationHandler) Value(_ context.Context, m *Mapping, _ *email.Record) (notion.PropertyValue, error) {
	ids := make([]string, 0, len(m.SelectedPages))
	for _, p := range m.SelectedPages {
		ids = append(ids, p.ID)
	}
	refs := notion.References(ids)
	if len(refs) == 0 {
		return nil, nil
	}
	return notion.PropertyValue{"relation": refs}, nil
}
