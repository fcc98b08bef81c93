package knowledge

import (
	"context"
	"sort"
	"strings"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

// patternScoreWeight and lessonScoreWeight keep lessons ranked below pattern
// hits of equal text relevance per the hybrid query contract.
const (
	patternScoreWeight = 1.0
	lessonScoreWeight  = 0.5
)

// Hit is one scored query result, either a Pattern or a Lesson.
type Hit struct {
	Score   float64
	Pattern *domain.Pattern
	Lesson  *domain.Lesson
}

// Search scores patterns and lessons against query (case-insensitive
// substring match over name/description/patternType/suitableRegimes for
// patterns, and summary/category for lessons), optionally filtered to assets, sorted
// by descending score and truncated to limit.
func (s *Service) Search(ctx context.Context, tenantID, query string, assets []string, limit int) ([]Hit, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	assetSet := toLowerSet(assets)

	patterns, err := s.store.ListPatterns(ctx, tenantID)
	if err != nil {
		return nil, apierrors.Internal("failed to list patterns", err)
	}
	lessons, err := s.store.ListLessons(ctx, tenantID)
	if err != nil {
		return nil, apierrors.Internal("failed to list lessons", err)
	}

	hits := make([]Hit, 0, len(patterns)+len(lessons))
	for i := range patterns {
		p := patterns[i]
		if len(assetSet) > 0 && !intersects(assetSet, toLowerSet(p.SuitableRegimes)) {
			continue
		}
		score := patternTextScore(p, q)
		if q != "" && score == 0 {
			continue
		}
		hits = append(hits, Hit{Score: score * patternScoreWeight, Pattern: &p})
	}
	for i := range lessons {
		l := lessons[i]
		score := lessonTextScore(l, q)
		if q != "" && score == 0 {
			continue
		}
		hits = append(hits, Hit{Score: score * lessonScoreWeight, Lesson: &l})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func patternTextScore(p domain.Pattern, q string) float64 {
	if q == "" {
		return 1
	}
	fields := []string{p.Name, p.Description, p.PatternType, strings.Join(p.SuitableRegimes, " ")}
	return substringScore(fields, q)
}

func lessonTextScore(l domain.Lesson, q string) float64 {
	if q == "" {
		return 1
	}
	return substringScore([]string{l.Summary, string(l.Category)}, q)
}

func substringScore(fields []string, q string) float64 {
	score := 0.0
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			score++
		}
	}
	return score
}

func toLowerSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return out
}

func intersects(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// ListPatterns returns every pattern for tenantID, optionally filtered by
// patternType and asset.
func (s *Service) ListPatterns(ctx context.Context, tenantID, patternType, asset string, limit int) ([]domain.Pattern, error) {
	all, err := s.store.ListPatterns(ctx, tenantID)
	if err != nil {
		return nil, apierrors.Internal("failed to list patterns", err)
	}
	out := make([]domain.Pattern, 0, len(all))
	for _, p := range all {
		if patternType != "" && !strings.EqualFold(p.PatternType, patternType) {
			continue
		}
		if asset != "" {
			found := false
			for _, r := range p.SuitableRegimes {
				if strings.EqualFold(r, asset) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, p)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetOpenRegime returns the currently-open MarketRegime for asset, or
// apierrors.KnowledgeRegimeNotFound (KNOWLEDGE_REGIME_NOT_FOUND) if none is
// open.
func (s *Service) GetOpenRegime(ctx context.Context, tenantID, asset string) (domain.MarketRegime, error) {
	regime, found, err := s.store.GetOpenMarketRegime(ctx, tenantID, asset)
	if err != nil {
		return domain.MarketRegime{}, apierrors.Internal("failed to load market regime", err)
	}
	if !found {
		return domain.MarketRegime{}, apierrors.KnowledgeRegimeNotFound(asset)
	}
	return regime, nil
}
