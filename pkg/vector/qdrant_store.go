package vector

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"ai-rag-be/pkg/store"
)

// Payload keys the ingestion side writes for every point.
const (
	payloadText      = "text"
	payloadTitle     = "title"
	payloadTimestamp = "timestamp"
)

// QdrantStore implements Store on top of the Qdrant gRPC client.
type QdrantStore struct {
	client *qdrant.Client
}

type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter Filter) ([]store.Document, error) {
	if limit <= 0 {
		limit = 5
	}

	qLimit := uint64(limit)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &qLimit,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, store.NewError(store.KindUpstreamUnavailable, "vector.search", err)
	}

	docs := make([]store.Document, 0, len(resp))
	for _, hit := range resp {
		docs = append(docs, hitToDocument(collection, hit))
	}
	return docs, nil
}

func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, store.NewError(store.KindUpstreamUnavailable, "vector.list_collections", err)
	}
	return names, nil
}

func buildFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		conditions = append(conditions, qdrant.NewMatch(key, value))
	}
	return &qdrant.Filter{Must: conditions}
}

func hitToDocument(collection string, hit *qdrant.ScoredPoint) store.Document {
	doc := store.Document{
		Collection: collection,
		Score:      float64(hit.GetScore()),
		Metadata:   map[string]any{},
	}

	if id := hit.GetId(); id != nil {
		if uuid := id.GetUuid(); uuid != "" {
			doc.ID = uuid
		} else {
			doc.ID = fmt.Sprintf("%d", id.GetNum())
		}
	}

	for key, val := range hit.GetPayload() {
		switch key {
		case payloadText:
			doc.Text = val.GetStringValue()
		case payloadTitle:
			doc.Title = val.GetStringValue()
		case payloadTimestamp:
			doc.Timestamp = store.NormalizeTimestamp(payloadValue(val))
		default:
			doc.Metadata[key] = payloadValue(val)
		}
	}

	return doc
}

// payloadValue flattens a qdrant scalar into a plain Go value. Nested
// structures are not used by this service's payload schema.
func payloadValue(val *qdrant.Value) any {
	switch v := val.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	default:
		return nil
	}
}
