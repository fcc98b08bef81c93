package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

func seedPattern(t *testing.T, ctx context.Context, st *memory.Store, p domain.Pattern) {
	t.Helper()
	_, err := st.CreatePattern(ctx, p)
	require.NoError(t, err)
}

func TestService_Search_RanksPatternsAboveLessonsOnEqualMatch(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	seedPattern(t, ctx, st, domain.Pattern{ID: "p1", TenantID: "t1", Name: "breakout squeeze", PatternType: "momentum"})
	_, err := st.AppendLesson(ctx, domain.Lesson{ID: "l1", TenantID: "t1", Summary: "breakout squeeze failed on low volume", Category: domain.LessonBacktestFailure})
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "t1", "breakout", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.NotNil(t, hits[0].Pattern, "pattern hit must rank above lesson hit on equal text relevance")
	assert.NotNil(t, hits[1].Lesson)
}

func TestService_Search_AssetFilterIntersectsSuitableRegimes(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	seedPattern(t, ctx, st, domain.Pattern{ID: "p1", TenantID: "t1", Name: "trend", PatternType: "trend", SuitableRegimes: []string{"BTC-USD"}})
	seedPattern(t, ctx, st, domain.Pattern{ID: "p2", TenantID: "t1", Name: "trend", PatternType: "trend", SuitableRegimes: []string{"ETH-USD"}})

	hits, err := svc.Search(ctx, "t1", "trend", []string{"btc-usd"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].Pattern.ID)
}

func TestService_Search_TruncatesToLimit(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedPattern(t, ctx, st, domain.Pattern{ID: string(rune('a' + i)), TenantID: "t1", Name: "momentum pattern", PatternType: "momentum"})
	}
	hits, err := svc.Search(ctx, "t1", "momentum", nil, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestService_GetOpenRegime_NotFoundWhenNoneOpen(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	_, err := svc.GetOpenRegime(ctx, "t1", "BTC-USD")
	require.Error(t, err)
}

func TestService_GetOpenRegime_ReturnsOpenRegime(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	_, err := st.PutMarketRegime(ctx, domain.MarketRegime{ID: "r1", TenantID: "t1", Asset: "BTC-USD", RegimeType: "trending"})
	require.NoError(t, err)

	regime, err := svc.GetOpenRegime(ctx, "t1", "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "trending", regime.RegimeType)
}
