package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/store"
)

// NoExamples is returned by FormatAsFewShot for an empty list.
const NoExamples = "No similar past interactions found."

// Episodic stores past interactions and retrieves them by situation.
type Episodic struct {
	store  store.Store
	ns     namespace.Namespace
	metric embedding.Metric
}

// NewEpisodic opens the shared episode namespace.
func NewEpisodic(s store.Store) *Episodic {
	return &Episodic{store: s, ns: namespace.Episodes}
}

func (e *Episodic) Namespace() namespace.Namespace { return e.ns }

// WithMetric sets the similarity metric used by FindSimilar.
func (e *Episodic) WithMetric(metric embedding.Metric) *Episodic {
	e.metric = metric
	return e
}

// Store saves ep under ep.Key.
func (e *Episodic) Store(ctx context.Context, ep model.Episode) error {
	if _, err := e.store.Put(ctx, e.ns, ep.Key, ep.ToValue()); err != nil {
		return fmt.Errorf("store episode %s: %w", ep.Key, err)
	}
	return nil
}

// FindSimilar returns up to limit episodes ranked by situation similarity.
func (e *Episodic) FindSimilar(ctx context.Context, query string, limit int) ([]model.Episode, error) {
	results, err := e.store.Search(ctx, e.ns, store.SearchParams{Query: query, Limit: limit, Metric: e.metric})
	if err != nil {
		return nil, fmt.Errorf("find episodes: %w", err)
	}
	eps := make([]model.Episode, len(results))
	for i, r := range results {
		eps[i] = model.EpisodeFromResult(r)
	}
	return eps, nil
}

// FormatAsFewShot renders episodes as numbered examples separated by blank
// lines. Feedback lines appear only for episodes that have feedback.
func FormatAsFewShot(episodes []model.Episode) string {
	if len(episodes) == 0 {
		return NoExamples
	}
	blocks := make([]string, len(episodes))
	for i, ep := range episodes {
		var b strings.Builder
		fmt.Fprintf(&b, "Example %d:\nSituation: %s\nUser: %s\nAssistant: %s", i+1, ep.Situation, ep.Input, ep.Output)
		if ep.Feedback != "" {
			fmt.Fprintf(&b, "\nFeedback: %s", ep.Feedback)
		}
		blocks[i] = b.String()
	}
	return strings.Join(blocks, "\n\n")
}
