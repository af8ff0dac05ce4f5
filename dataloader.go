package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

// DataLoaders holds the per-request batched loaders
type DataLoaders struct {
	SummaryLoader *dataloader.Loader[int, *ProfileSummary]
}

// NewDataLoaders creates new dataloaders with the database connection
func NewDataLoaders(db *sql.DB) *DataLoaders {
	return &DataLoaders{
		SummaryLoader: dataloader.NewBatchedLoader(summaryBatchFn(db), dataloader.WithWait[int, *ProfileSummary](16*time.Millisecond)),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// summaryBatchFn creates the batch function for profile summaries. Follower
// lists, connection lists and chat summaries all fan out over user ids; the
// loader collapses each request's lookups into one IN query.
func summaryBatchFn(db *sql.DB) dataloader.BatchFunc[int, *ProfileSummary] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*ProfileSummary] {
		results := make([]*dataloader.Result[*ProfileSummary], len(keys))

		keyMap := make(map[int]int) // userID -> index in results
		for i, key := range keys {
			keyMap[key] = i
			results[i] = &dataloader.Result[*ProfileSummary]{}
		}

		if len(keys) == 0 {
			return results
		}

		placeholders := make([]string, len(keys))
		args := make([]interface{}, len(keys))
		for i, key := range keys {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = key
		}

		query := fmt.Sprintf(`
			SELECT u.id,
			       COALESCE(p.display_name, 'User ' || u.id),
			       COALESCE(p.role, ''),
			       COALESCE(p.avatar_url, '')
			FROM users u
			LEFT JOIN profiles p ON p.user_id = u.id
			WHERE u.id IN (%s)
		`, joinPlaceholders(placeholders))

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		for rows.Next() {
			var s ProfileSummary
			if err := rows.Scan(&s.ID, &s.DisplayName, &s.Role, &s.AvatarURL); err != nil {
				for i := range results {
					if results[i].Data == nil && results[i].Error == nil {
						results[i].Error = err
					}
				}
				return results
			}
			if idx, ok := keyMap[s.ID]; ok {
				summary := s
				results[idx].Data = &summary
			}
		}

		return results
	}
}

// Helper function to join placeholders for IN clause
func joinPlaceholders(placeholders []string) string {
	if len(placeholders) == 0 {
		return ""
	}
	result := placeholders[0]
	for i := 1; i < len(placeholders); i++ {
		result += ", " + placeholders[i]
	}
	return result
}

// loadProfileSummaries projects user ids to summaries in input order, through
// the request's batched loader when one is attached, directly otherwise. Ids
// with no matching user are skipped.
func loadProfileSummaries(ctx context.Context, db *sql.DB, userIDs []int) ([]ProfileSummary, error) {
	if len(userIDs) == 0 {
		return []ProfileSummary{}, nil
	}

	if loaders := GetDataLoadersFromContext(ctx); loaders != nil {
		thunk := loaders.SummaryLoader.LoadMany(ctx, userIDs)
		ptrs, errs := thunk()
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		out := make([]ProfileSummary, 0, len(ptrs))
		for _, p := range ptrs {
			if p != nil {
				out = append(out, *p)
			}
		}
		return out, nil
	}

	byID, err := fetchProfileSummaries(db, userIDs)
	if err != nil {
		return nil, err
	}
	out := make([]ProfileSummary, 0, len(userIDs))
	for _, id := range userIDs {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
