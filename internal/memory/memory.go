package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/reporecall/internal/config"
	"github.com/dshills/reporecall/internal/storage"
	"github.com/dshills/reporecall/internal/tokenize"
	"github.com/dshills/reporecall/internal/vectorindex"
	"github.com/dshills/reporecall/pkg/types"
)

// FileName is the memory log inside the state directory
const FileName = "memory.jsonl"

// maxTags bounds the tags derived for a new item
const maxTags = 5

// Recency steps
const (
	recentWindow = 7 * 24 * time.Hour
	staleWindow  = 30 * 24 * time.Hour
)

// Scored is a memory item with its fused retrieval score
type Scored struct {
	Item        types.MemoryItem `json:"item"`
	Score       float64          `json:"score"`
	VectorScore float64          `json:"vector_score"`
	Overlap     int              `json:"overlap"`
}

// Store is the project memory. Methods are safe for concurrent use.
type Store struct {
	path   string
	cfg    config.MemoryConfig
	index  vectorindex.Index
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewStore creates a store over <stateDir>/memory.jsonl. A nil index
// disables vector similarity; zero config values take the defaults.
func NewStore(stateDir string, cfg config.MemoryConfig, index vectorindex.Index, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = vectorindex.Noop{}
	}
	return &Store{
		path:   filepath.Join(stateDir, FileName),
		cfg:    withDefaults(cfg),
		index:  index,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func withDefaults(cfg config.MemoryConfig) config.MemoryConfig {
	d := config.Default().Memory
	if cfg.CandidatesPerTurn <= 0 {
		cfg.CandidatesPerTurn = d.CandidatesPerTurn
	}
	if cfg.SeedImportance <= 0 {
		cfg.SeedImportance = d.SeedImportance
	}
	if cfg.ImportanceStep <= 0 {
		cfg.ImportanceStep = d.ImportanceStep
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = d.DuplicateThreshold
	}
	if cfg.Overfetch <= 0 {
		cfg.Overfetch = d.Overfetch
	}
	if cfg.VectorWeight == 0 && cfg.ImportanceWeight == 0 && cfg.RecencyWeight == 0 && cfg.KeywordWeight == 0 {
		cfg.VectorWeight = d.VectorWeight
		cfg.ImportanceWeight = d.ImportanceWeight
		cfg.RecencyWeight = d.RecencyWeight
		cfg.KeywordWeight = d.KeywordWeight
	}
	return cfg
}

// Path returns the memory log location
func (s *Store) Path() string { return s.path }

// RecordTurn extracts candidate facts from a completed interaction and
// stores them. Candidates are drawn from output only; input is accepted so
// callers can pass the whole turn. Vector indexing is best-effort and never
// fails the call.
func (s *Store) RecordTurn(ctx context.Context, input, output, sessionID string) error {
	candidates := ExtractCandidates(output, s.cfg.CandidatesPerTurn)
	if len(candidates) == 0 {
		s.logger.Debug("no memory candidates in turn", "input_len", len(input), "output_len", len(output))
		return nil
	}

	added, err := s.upsert(candidates, nil, sessionID, types.SourceTurn)
	if err != nil {
		return err
	}
	s.indexVectors(ctx, added)
	return nil
}

// Add stores one explicit fact. An existing fact with the same normalized
// content is touched instead and returned.
func (s *Store) Add(ctx context.Context, content string, tags []string, source string) (types.MemoryItem, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.MemoryItem{}, types.ErrEmptyContent
	}
	if source == "" {
		source = types.SourceManual
	}

	added, err := s.upsert([]string{content}, tags, "", source)
	if err != nil {
		return types.MemoryItem{}, err
	}
	s.indexVectors(ctx, added)
	if len(added) == 1 {
		return added[0], nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load()
	if err != nil {
		return types.MemoryItem{}, err
	}
	norm := Normalize(content)
	for _, it := range items {
		if Normalize(it.Content) == norm {
			return it, nil
		}
	}
	return types.MemoryItem{}, errors.New("memory item missing after write")
}

// upsert dedups contents against the log by normalized form, touching
// matches and appending the rest, then rewrites the log once. It returns
// the newly created items.
func (s *Store) upsert(contents []string, tags []string, sessionID, source string) ([]types.MemoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}

	byNorm := make(map[string]int, len(items))
	for i, it := range items {
		if norm := Normalize(it.Content); norm != "" {
			if _, ok := byNorm[norm]; !ok {
				byNorm[norm] = i
			}
		}
	}

	now := s.now()
	changed := false
	var added []types.MemoryItem
	for _, content := range contents {
		norm := Normalize(content)
		if norm == "" {
			continue
		}
		changed = true

		if i, ok := byNorm[norm]; ok {
			touched := now
			items[i].LastUsedAt = &touched
			items[i].Importance = min(1.0, items[i].Importance+s.cfg.ImportanceStep)
			s.logger.Debug("memory item reinforced", "id", items[i].ID, "importance", items[i].Importance)
			continue
		}

		itemTags := tags
		if itemTags == nil {
			itemTags = tokenize.TopIdentifiers(content, maxTags)
		}
		if itemTags == nil {
			itemTags = []string{}
		}
		touched := now
		item := types.MemoryItem{
			ID:         uuid.NewString(),
			Content:    content,
			Tags:       itemTags,
			Importance: s.cfg.SeedImportance,
			CreatedAt:  now,
			LastUsedAt: &touched,
			SessionID:  sessionID,
			Source:     source,
		}
		byNorm[norm] = len(items)
		items = append(items, item)
		added = append(added, item)
	}

	if !changed {
		return nil, nil
	}
	if err := s.save(items); err != nil {
		return nil, err
	}
	s.logger.Debug("memory recorded", "added", len(added), "total", len(items))
	return added, nil
}

// indexVectors adds new items to the vector index, skipping any whose
// nearest neighbour is a near-duplicate. Failures are logged only.
func (s *Store) indexVectors(ctx context.Context, added []types.MemoryItem) {
	if len(added) == 0 || !s.index.Available() {
		return
	}

	for _, item := range added {
		if s.index.Len(ctx) > 0 {
			matches, err := s.index.Search(ctx, item.Content, 1)
			if err != nil {
				s.logger.Warn("vector upsert skipped", "id", item.ID, "error", err)
				return
			}
			if len(matches) > 0 && matches[0].Score > s.cfg.DuplicateThreshold {
				s.logger.Debug("vector upsert skipped, near duplicate",
					"id", item.ID, "duplicate_of", matches[0].ID, "score", matches[0].Score)
				continue
			}
		}
		if err := s.index.Add(ctx, []vectorindex.Entry{{ID: item.ID, Content: item.Content}}); err != nil {
			s.logger.Warn("vector upsert failed", "id", item.ID, "error", err)
			return
		}
	}
}

// Retrieve returns the content of the top k items for query
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	scored, err := s.RetrieveItems(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(scored))
	for i, sc := range scored {
		out[i] = sc.Item.Content
	}
	return out, nil
}

// RetrieveItems ranks every item by fused score and returns the top k.
// Returned items have lastUsedAt refreshed. A blank query, or one without
// any word tokens, returns nothing.
func (s *Store) RetrieveItems(ctx context.Context, query string, k int) ([]Scored, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	queryTokens := tokenize.UniqueWords(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	vectorScores := s.vectorScores(ctx, query, k)

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	now := s.now()
	positions := make([]int, 0, len(items))
	scored := make([]Scored, 0, len(items))
	for i, it := range items {
		overlap := tokenize.Overlap(queryTokens, tokenize.WordSet(it.Content))
		vec := vectorScores[it.ID]
		score := s.cfg.VectorWeight*vec +
			s.cfg.ImportanceWeight*it.Importance +
			s.cfg.RecencyWeight*recency(now, it.ReferenceTime()) +
			s.cfg.KeywordWeight*float64(overlap)
		if score <= 0 {
			continue
		}
		positions = append(positions, i)
		scored = append(scored, Scored{Item: it, Score: score, VectorScore: vec, Overlap: overlap})
	}

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scored[b].Score, scored[a].Score)
	})
	if len(order) > k {
		order = order[:k]
	}

	top := make([]Scored, len(order))
	for i, o := range order {
		touched := now
		items[positions[o]].LastUsedAt = &touched
		top[i] = scored[o]
		top[i].Item.LastUsedAt = &touched
	}
	if len(top) > 0 {
		if err := s.save(items); err != nil {
			s.logger.Warn("failed to refresh memory usage", "error", err)
		}
	}
	return top, nil
}

// vectorScores over-fetches nearest items by embedding similarity. It
// returns an empty map when the backend is unavailable or fails.
func (s *Store) vectorScores(ctx context.Context, query string, k int) map[string]float64 {
	scores := make(map[string]float64)
	if !s.index.Available() || s.index.Len(ctx) == 0 {
		return scores
	}

	matches, err := s.index.Search(ctx, query, max(s.cfg.Overfetch, k))
	if err != nil {
		s.logger.Warn("vector search failed, ranking by keywords only", "error", err)
		return scores
	}
	for _, m := range matches {
		if prev, ok := scores[m.ID]; !ok || m.Score > prev {
			scores[m.ID] = m.Score
		}
	}
	return scores
}

// RebuildVectorIndex re-embeds every stored item and replaces the vector
// index. It returns a status message for display; an unreachable embedding
// backend leaves the old index in place and is reported in the message.
func (s *Store) RebuildVectorIndex(ctx context.Context) (string, error) {
	if !s.index.Available() {
		return "vector backend unavailable; retrieval uses keywords only", nil
	}

	s.mu.Lock()
	items, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	entries := make([]vectorindex.Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, vectorindex.Entry{ID: it.ID, Content: it.Content})
	}
	if err := s.index.Rebuild(ctx, entries); err != nil {
		if errors.Is(err, vectorindex.ErrBackendUnavailable) {
			s.logger.Warn("vector rebuild skipped", "items", len(entries), "error", err)
			return "vector backend unavailable; rebuild skipped, retrieval uses keywords only", nil
		}
		return "", fmt.Errorf("failed to rebuild vector index: %w", err)
	}
	return fmt.Sprintf("vector index rebuilt with %d items", len(entries)), nil
}

// List returns every stored item in log order
func (s *Store) List() ([]types.MemoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads the log; a missing log is an empty store
func (s *Store) load() ([]types.MemoryItem, error) {
	items, stats, err := storage.ReadLog[types.MemoryItem](s.path)
	if err != nil {
		if errors.Is(err, types.ErrNotBuilt) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read memory log: %w", err)
	}
	if stats.Skipped > 0 {
		s.logger.Warn("skipped malformed memory lines", "path", s.path, "skipped", stats.Skipped)
	}
	return items, nil
}

func (s *Store) save(items []types.MemoryItem) error {
	if err := storage.WriteLog(s.path, items); err != nil {
		return fmt.Errorf("failed to write memory log: %w", err)
	}
	return nil
}

// recency is a step function of the age of ref
func recency(now, ref time.Time) float64 {
	if ref.IsZero() {
		return 0
	}
	age := now.Sub(ref)
	switch {
	case age <= recentWindow:
		return 1.0
	case age <= staleWindow:
		return 0.5
	default:
		return 0.1
	}
}
