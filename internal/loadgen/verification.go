package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/consortium/pkg/logger"
)

// ErrInconsistentRanking is returned when a ranking breaks its ordering.
var ErrInconsistentRanking = errors.New("inconsistent ranking")

// fetchRanking reads the top n entries of a tender.
func fetchRanking(ctx context.Context, c *client, tenderID string, n int) ([]Entry, error) {
	var entries []Entry
	if _, err := c.do(ctx, http.MethodGet, "/tenders/"+tenderID+"/ranking?limit="+strconv.Itoa(n), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// verifyRanking checks that scores never increase down the list and that
// ranks are dense with equal scores sharing a rank.
func verifyRanking(entries []Entry) error {
	for i, e := range entries {
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("%w: first entry has rank %d", ErrInconsistentRanking, e.Rank)
			}
			continue
		}
		prev := entries[i-1]
		switch {
		case e.ExpectedScore > prev.ExpectedScore:
			return fmt.Errorf("%w: entry %d scores %.4f above entry %d (%.4f)",
				ErrInconsistentRanking, i, e.ExpectedScore, i-1, prev.ExpectedScore)
		case e.ExpectedScore == prev.ExpectedScore && e.Rank != prev.Rank:
			return fmt.Errorf("%w: tied entries %d and %d have ranks %d and %d",
				ErrInconsistentRanking, i-1, i, prev.Rank, e.Rank)
		case e.ExpectedScore < prev.ExpectedScore && e.Rank != prev.Rank+1:
			return fmt.Errorf("%w: entry %d has rank %d after rank %d",
				ErrInconsistentRanking, i, e.Rank, prev.Rank)
		}
	}
	return nil
}

// verifyRankings fetches and checks the ranking of every tender.
func verifyRankings(ctx context.Context, c *client, config *Config, tenders []string, stats *Stats) error {
	log := logger.Named("loadgen")
	for _, id := range tenders {
		entries, err := fetchRanking(ctx, c, id, config.TopN)
		if err != nil {
			return fmt.Errorf("ranking of %s: %w", id, err)
		}
		if err := verifyRanking(entries); err != nil {
			return fmt.Errorf("ranking of %s: %w", id, err)
		}
		stats.RankingsChecked++
		if len(entries) > 0 {
			log.Info(ctx, "tender ranking verified",
				logger.String("tender_id", id),
				logger.Int("entries", len(entries)),
				logger.String("leader", entries[0].Candidate),
				logger.Float64("top_score", entries[0].ExpectedScore),
			)
		}
	}
	return nil
}
