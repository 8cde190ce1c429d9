package store

import (
	"context"
	"fmt"
	"log"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore maps each project to its own Qdrant collection named
// "crossgrep_<project_id>". Cosine distance, payload stored beside the
// vector, deterministic UUID point ids.
type QdrantStore struct {
	client *qdrant.Client
}

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	Endpoint string
	Port     int
	UseTLS   bool
	APIKey   string
}

// NewQdrantStore connects to a Qdrant instance over gRPC.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Endpoint,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s:%d: %w", cfg.Endpoint, cfg.Port, err)
	}

	return &QdrantStore{client: client}, nil
}

func collectionName(projectID string) string {
	return "crossgrep_" + projectID
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, projectID string, dimension int, recreate bool) error {
	name := collectionName(projectID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to inspect collection %s: %w", name, err)
		}
		existing := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		if existing == dimension {
			return nil
		}
		if !recreate {
			return fmt.Errorf("collection %s has dimension %d, want %d: %w",
				name, existing, dimension, ErrDimensionMismatch)
		}
		log.Printf("Recreating collection %s: dimension %d -> %d", name, existing, dimension)
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, projectID string) error {
	name := collectionName(projectID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}

	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	return nil
}

func (s *QdrantStore) GetCollectionInfo(ctx context.Context, projectID string) (*CollectionInfo, error) {
	name := collectionName(projectID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect collection %s: %w", name, err)
	}

	return &CollectionInfo{
		ProjectID: projectID,
		Dimension: int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()),
		Points:    info.GetPointsCount(),
	}, nil
}

func (s *QdrantStore) UpsertBatch(ctx context.Context, projectID string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payloadToQdrant(p.Payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(projectID),
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points for %s: %w", len(points), projectID, err)
	}
	return nil
}

func (s *QdrantStore) DeleteByFile(ctx context.Context, projectID, filePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName(projectID),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("file_path", filePath),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for %s in %s: %w", filePath, projectID, err)
	}
	return nil
}

func (s *QdrantStore) SearchProject(ctx context.Context, projectID string, vector []float32, limit int, threshold float32, filter *Filter) ([]SearchHit, error) {
	query := &qdrant.QueryPoints{
		CollectionName: collectionName(projectID),
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if threshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(threshold)
	}
	if filter != nil && filter.Language != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("language", filter.Language),
			},
		}
	}
	// Path prefix has no exact server-side match; over-fetch and trim
	// client-side instead.
	if filter != nil && filter.PathPrefix != "" {
		query.Limit = qdrant.PtrOf(uint64(limit * 4))
	}

	scored, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search project %s: %w", projectID, err)
	}

	hits := make([]SearchHit, 0, len(scored))
	for _, sp := range scored {
		payload := payloadFromQdrant(sp.GetPayload())
		if !MatchesFilter(payload, filter) {
			continue
		}
		hits = append(hits, SearchHit{
			ID:      sp.GetId().GetUuid(),
			Score:   sp.GetScore(),
			Payload: payload,
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func (s *QdrantStore) Scroll(ctx context.Context, projectID string, offset string, limit int) ([]Point, string, error) {
	if limit <= 0 {
		limit = 100
	}

	req := &qdrant.ScrollPoints{
		CollectionName: collectionName(projectID),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	}
	if offset != "" {
		req.Offset = qdrant.NewID(offset)
	}

	// The high-level Scroll helper drops the next-page cursor, so go
	// through the points client directly.
	resp, err := s.client.GetPointsClient().Scroll(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to scroll project %s: %w", projectID, err)
	}

	points := make([]Point, 0, len(resp.GetResult()))
	for _, rp := range resp.GetResult() {
		points = append(points, Point{
			ID:      rp.GetId().GetUuid(),
			Vector:  rp.GetVectors().GetVector().GetData(),
			Payload: payloadFromQdrant(rp.GetPayload()),
		})
	}

	next := ""
	if resp.GetNextPageOffset() != nil {
		next = resp.GetNextPageOffset().GetUuid()
	}
	return points, next, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func payloadToQdrant(p Payload) map[string]*qdrant.Value {
	fields := map[string]any{
		"project_id":   p.ProjectID,
		"project_name": p.ProjectName,
		"file_path":    p.FilePath,
		"language":     p.Language,
		"chunk_index":  int64(p.ChunkIndex),
		"content":      p.Content,
	}
	if len(p.Metadata) > 0 {
		meta := make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
		fields["metadata"] = meta
	}
	return qdrant.NewValueMap(fields)
}

func payloadFromQdrant(fields map[string]*qdrant.Value) Payload {
	p := Payload{
		ProjectID:   fields["project_id"].GetStringValue(),
		ProjectName: fields["project_name"].GetStringValue(),
		FilePath:    fields["file_path"].GetStringValue(),
		Language:    fields["language"].GetStringValue(),
		ChunkIndex:  int(fields["chunk_index"].GetIntegerValue()),
		Content:     fields["content"].GetStringValue(),
	}
	if meta := fields["metadata"].GetStructValue(); meta != nil {
		p.Metadata = make(map[string]string, len(meta.GetFields()))
		for k, v := range meta.GetFields() {
			p.Metadata[k] = v.GetStringValue()
		}
	}
	return p
}
