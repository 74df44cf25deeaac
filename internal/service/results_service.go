package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/model"
)

const (
	resultsKey = "results:recent"
	resultsCap = 200
)

// ResultsService keeps a capped list of recent classification results so
// the dashboard survives page reloads.
type ResultsService struct {
	redis *redis.Client
}

func NewResultsService(redisClient *redis.Client) *ResultsService {
	return &ResultsService{redis: redisClient}
}

// Record prepends a result and trims the list to its cap
func (s *ResultsService) Record(ctx context.Context, result *model.AnalyzeResponse) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, resultsKey, data)
	pipe.LTrim(ctx, resultsKey, 0, resultsCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}

	return nil
}

// List returns the most recent results, newest first
func (s *ResultsService) List(ctx context.Context, limit int) ([]model.AnalyzeResponse, error) {
	if limit <= 0 || limit > resultsCap {
		limit = 50
	}

	rows, err := s.redis.LRange(ctx, resultsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	results := make([]model.AnalyzeResponse, 0, len(rows))
	for _, row := range rows {
		var r model.AnalyzeResponse
		if err := json.Unmarshal([]byte(row), &r); err != nil {
			continue // skip malformed entries
		}
		results = append(results, r)
	}

	return results, nil
}

// Clear removes all stored results
func (s *ResultsService) Clear(ctx context.Context) error {
	return s.redis.Del(ctx, resultsKey).Err()
}
