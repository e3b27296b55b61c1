package engine

import (
	"context"
	"fmt"
	"sort"

	"hazard-reporting-system/services/hazard-service/models"
)

type SortKey string

const (
	SortByPoints SortKey = "points"
	SortByLevel  SortKey = "level"
)

func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case SortByPoints, SortByLevel:
		return SortKey(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortKey, s)
}

// Rank orders ledger records by the sort key. The sort is stable: ties keep
// their prior relative order, so toggling the direction on identical data
// is a pure reversal of the comparison, not a reshuffle.
func Rank(records []models.UserRecord, key SortKey, ascending bool) []models.UserRecord {
	ranked := append([]models.UserRecord(nil), records...)

	value := func(r models.UserRecord) int {
		if key == SortByLevel {
			return r.Level
		}
		return r.Points
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ascending {
			return value(ranked[i]) < value(ranked[j])
		}
		return value(ranked[i]) > value(ranked[j])
	})

	return ranked
}

// Paginate slices one 1-indexed page out of a ranked list. A page past the
// end is an empty slice, not an error.
func Paginate(ranked []models.UserRecord, pageSize, page int) []models.UserRecord {
	if pageSize <= 0 || page <= 0 {
		return []models.UserRecord{}
	}

	start := (page - 1) * pageSize
	if start >= len(ranked) {
		return []models.UserRecord{}
	}

	end := start + pageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end]
}

// Leaderboard reads the whole ledger and returns one ranked page.
func (e *Engine) Leaderboard(ctx context.Context, key SortKey, ascending bool, pageSize, page int) ([]models.UserRecord, error) {
	records, err := e.ledger.All(ctx)
	if err != nil {
		return nil, err
	}
	return Paginate(Rank(records, key, ascending), pageSize, page), nil
}
