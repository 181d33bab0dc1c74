package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant-backed chunk store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the collection name holding this workspace's chunks.
	Collection string

	// VectorSize is the embedding dimensionality for collection creation.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore is a ChunkStore backed by a Qdrant collection. It preserves
// the JSONStore contract: Load returns the full persisted chunk set and
// Save replaces the collection's content wholesale. Intended for workspaces
// whose index outgrows a single JSON file; the JSONStore remains the
// default backend.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a QdrantStore, ensuring the target collection
// exists.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name must not be empty")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ensureCollection creates the collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Load scrolls the full collection back into chunk records. Point order is
// Qdrant's internal ID order, which is stable across calls for an unchanged
// collection.
func (s *QdrantStore) Load(ctx context.Context) ([]Chunk, error) {
	const pageSize = 256

	var chunks []Chunk
	var offset *qdrant.PointId
	for {
		limit := uint32(pageSize)
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: scroll: %w", err)
		}
		if len(points) == 0 {
			return chunks, nil
		}

		for _, p := range points {
			chunks = append(chunks, pointToChunk(p))
		}
		if len(points) < pageSize {
			return chunks, nil
		}
		offset = points[len(points)-1].Id
	}
}

// Save replaces the collection's content with exactly the given chunks:
// drop, recreate, upsert. Matches the last-full-write-wins semantics of the
// file-backed store.
func (s *QdrantStore) Save(ctx context.Context, chunks []Chunk) error {
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("qdrant: drop collection: %w", err)
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(c.ID)),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"id":            c.ID,
				"path":          c.Path,
				"start_line":    int64(c.StartLine),
				"end_line":      int64(c.EndLine),
				"text":          c.Text,
				"modified_time": c.ModifiedTime,
			}),
		})
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID derives a deterministic UUID for a chunk ID so repeated saves of
// the same chunk address the same point.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// pointToChunk rebuilds a chunk record from a scrolled Qdrant point.
func pointToChunk(p *qdrant.RetrievedPoint) Chunk {
	var c Chunk
	if payload := p.GetPayload(); payload != nil {
		if v, ok := payload["id"]; ok {
			c.ID = v.GetStringValue()
		}
		if v, ok := payload["path"]; ok {
			c.Path = v.GetStringValue()
		}
		if v, ok := payload["start_line"]; ok {
			c.StartLine = int(v.GetIntegerValue())
		}
		if v, ok := payload["end_line"]; ok {
			c.EndLine = int(v.GetIntegerValue())
		}
		if v, ok := payload["text"]; ok {
			c.Text = v.GetStringValue()
		}
		if v, ok := payload["modified_time"]; ok {
			c.ModifiedTime = v.GetDoubleValue()
		}
	}
	if vectors := p.GetVectors(); vectors != nil {
		if vec := vectors.GetVector(); vec != nil {
			c.Embedding = vec.GetData()
		}
	}
	return c
}
