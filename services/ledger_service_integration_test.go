package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupIntegrationLedger connects to the database named by TEST_DATABASE_URL
// or DATABASE_URL and hands back a service scoped to a throwaway guild ID.
// Without either variable the test is skipped.
func setupIntegrationLedger(t *testing.T) (*LedgerService, int64) {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set, skipping database tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	svc := NewLedgerService(pool)
	require.NoError(t, svc.CreateTables(ctx))

	guildID := time.Now().UnixNano()
	t.Cleanup(func() {
		pool.Exec(ctx, `DELETE FROM leaderboard WHERE guild_id = $1`, guildID)
		pool.Exec(ctx, `DELETE FROM guild_config WHERE guild_id = $1`, guildID)
		pool.Close()
	})

	return svc, guildID
}

func TestIntegrationApplyPointsDeltaClampsAtZero(t *testing.T) {
	svc, guildID := setupIntegrationLedger(t)
	ctx := context.Background()

	require.NoError(t, svc.UpsertMember(ctx, guildID, 42, "alice"))

	applied, points, err := svc.ApplyPointsDelta(ctx, guildID, 42, 5, "")
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, 5, points)

	// An oversized deduction is truncated so the stored value is exactly 0.
	applied, points, err = svc.ApplyPointsDelta(ctx, guildID, 42, -1000, "")
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, 0, points)

	stats, err := svc.GetStats(ctx, guildID, 42)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.Points)

	// The clamp does not poison later additions.
	_, points, err = svc.ApplyPointsDelta(ctx, guildID, 42, 3, "")
	require.NoError(t, err)
	assert.Equal(t, 3, points)
}

func TestIntegrationConcurrentDeltasLoseNoUpdates(t *testing.T) {
	svc, guildID := setupIntegrationLedger(t)
	ctx := context.Background()

	require.NoError(t, svc.UpsertMember(ctx, guildID, 42, "alice"))

	const workers = 25
	const delta = 4

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.ApplyPointsDelta(ctx, guildID, 42, delta, ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := svc.GetStats(ctx, guildID, 42)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, workers*delta, stats.Points, "row lock must serialize concurrent appliers")
}

func TestIntegrationPageRanksContinueAcrossPages(t *testing.T) {
	svc, guildID := setupIntegrationLedger(t)
	ctx := context.Background()

	const members = 60
	const perPage = 25
	for i := 1; i <= members; i++ {
		username := fmt.Sprintf("disciple%03d", i)
		_, _, err := svc.ApplyPointsDelta(ctx, guildID, int64(i), members-i+1, username)
		require.NoError(t, err)
	}

	wantRank := 1
	lastPoints := members + 1
	for pageNum := 1; pageNum <= 3; pageNum++ {
		page, err := svc.GetPage(ctx, guildID, pageNum, perPage)
		require.NoError(t, err)
		assert.Equal(t, pageNum, page.Page)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, members, page.TotalMembers)

		for _, row := range page.Rows {
			assert.Equal(t, wantRank, row.Rank, "ranks must continue across page boundaries")
			assert.LessOrEqual(t, row.Points, lastPoints, "pages must follow the global ordering")
			lastPoints = row.Points
			wantRank++
		}
	}
	assert.Equal(t, members+1, wantRank, "every member appears exactly once across the pages")
}

func TestIntegrationEmptyGuildPage(t *testing.T) {
	svc, guildID := setupIntegrationLedger(t)

	page, err := svc.GetPage(context.Background(), guildID, 7, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalPages)
}

func TestIntegrationUpsertMemberIdempotent(t *testing.T) {
	svc, guildID := setupIntegrationLedger(t)
	ctx := context.Background()

	require.NoError(t, svc.UpsertMember(ctx, guildID, 42, "alice"))
	_, _, err := svc.ApplyPointsDelta(ctx, guildID, 42, 50, "")
	require.NoError(t, err)

	// Re-upserting refreshes the username but never resets points.
	require.NoError(t, svc.UpsertMember(ctx, guildID, 42, "alice the renamed"))

	stats, err := svc.GetStats(ctx, guildID, 42)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 50, stats.Points)
	assert.Equal(t, "alice the renamed", stats.Username)
}
