package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/notion"
)

// Resolver finds the handler for a property kind.
type Resolver interface {
	HandlerFor(kind notion.Kind) Handler
}

// MappingError records one mapping that failed while the rest were applied.
type MappingError struct {
	Property string `json:"property"`
	Message  string `json:"message"`
}

// Result is the outcome of applying a batch of mappings.
type Result struct {
	Properties  map[string]notion.PropertyValue `json:"properties"`
	Errors      []MappingError                  `json:"errors"`
	MappedCount int                             `json:"mapped_count"`
}

// ErrMissingPropertyName is recorded for a mapping that produced a value but
// has no property name to store it under.
var ErrMissingPropertyName = errors.New("mapping has no notion property name")

// Service applies mappings to email records.
type Service struct {
	resolver Resolver
}

// NewService creates a mapping service
func NewService(resolver Resolver) *Service {
	return &Service{resolver: resolver}
}

// Apply runs every enabled mapping against rec in order. A failing mapping is
// recorded in Errors and never stops the others; properties that produce no
// value are left out.
func (s *Service) Apply(ctx context.Context, rec *email.Record, mappings []Mapping) Result {
	result := Result{
		Properties: make(map[string]notion.PropertyValue),
		Errors:     []MappingError{},
	}

	for i := range mappings {
		m := &mappings[i]
		if !m.Enabled {
			continue
		}

		value, err := s.applyOne(ctx, rec, m)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"property": m.Label(),
				"kind":     m.Kind,
			}).Warnf("Mapping failed: %v", err)
			result.Errors = append(result.Errors, MappingError{Property: m.Label(), Message: err.Error()})
			continue
		}
		if value == nil {
			continue
		}
		result.Properties[m.NotionPropertyName] = value
	}

	result.MappedCount = len(result.Properties)
	return result
}

func (s *Service) applyOne(ctx context.Context, rec *email.Record, m *Mapping) (value notion.PropertyValue, err error) {
	defer func() {
		if p := recover(); p != nil {
			value, err = nil, fmt.Errorf("handler panicked: %v", p)
		}
	}()

	if m.EmailField == email.FieldPermalink {
		link := rec.Permalink()
		if link == "" {
			return nil, nil
		}
		value = notion.PropertyValue{"url": link}
	} else {
		handler := s.resolver.HandlerFor(m.Kind)
		if handler == nil {
			return nil, nil
		}
		if value, err = handler.Value(ctx, m, rec); err != nil {
			return nil, err
		}
	}

	if value != nil && m.NotionPropertyName == "" {
		return nil, ErrMissingPropertyName
	}
	return value, nil
}
