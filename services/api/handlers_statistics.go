package api

import (
	"context"
	"net/http"
	"time"

	"bayanihan/pkg/db"
)

// Platform statistics run as raw aggregate SQL over the pgx pool; the ORM
// falls back in when no pool is configured.

type activityPoint struct {
	Day      time.Time `json:"day"`
	Comments int64     `json:"comments"`
	Votes    int64     `json:"votes"`
}

type topCommenter struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Comments int64  `json:"comments"`
}

// handlePlatformStatistics reports platform totals, 30-day activity, and the
// most active commenters.
func (a *API) handlePlatformStatistics(w http.ResponseWriter, r *http.Request) {
	a.respondCached(w, r, "statistics_platform", statsCacheTTL, func(ctx context.Context) (any, error) {
		if a.store.DB != nil {
			return a.platformStatsFromPool(ctx)
		}
		return a.platformStatsFromORM(ctx)
	})
}

func (a *API) platformStatsFromPool(ctx context.Context) (any, error) {
	var totals struct {
		Users    int64
		Comments int64
		Votes    int64
	}
	err := db.Get(ctx, a.store.DB, &totals, `
		SELECT
			(SELECT COUNT(*) FROM users)    AS users,
			(SELECT COUNT(*) FROM comments) AS comments,
			(SELECT COUNT(*) FROM votes)    AS votes`)
	if err != nil {
		return nil, err
	}

	var activity []activityPoint
	err = db.Select(ctx, a.store.DB, &activity, `
		SELECT day, COALESCE(c.n, 0) AS comments, COALESCE(v.n, 0) AS votes
		FROM generate_series(
			date_trunc('day', now()) - interval '29 days',
			date_trunc('day', now()),
			interval '1 day') AS day
		LEFT JOIN (
			SELECT date_trunc('day', created_at) AS d, COUNT(*) AS n
			FROM comments WHERE created_at > now() - interval '30 days'
			GROUP BY 1) c ON c.d = day
		LEFT JOIN (
			SELECT date_trunc('day', created_at) AS d, COUNT(*) AS n
			FROM votes WHERE created_at > now() - interval '30 days'
			GROUP BY 1) v ON v.d = day
		ORDER BY day`)
	if err != nil {
		return nil, err
	}

	var commenters []topCommenter
	err = db.Select(ctx, a.store.DB, &commenters, `
		SELECT u.id AS user_id, u.name, COUNT(*) AS comments
		FROM comments c JOIN users u ON u.id = c.user_id
		GROUP BY u.id, u.name
		ORDER BY comments DESC, u.name ASC
		LIMIT 10`)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"totals": map[string]any{
			"users":    totals.Users,
			"comments": totals.Comments,
			"votes":    totals.Votes,
		},
		"activity_30d":   activity,
		"top_commenters": commenters,
	}, nil
}

func (a *API) platformStatsFromORM(ctx context.Context) (any, error) {
	var users, comments, votes int64
	if err := a.store.ORM.WithContext(ctx).Model(&userModel{}).Count(&users).Error; err != nil {
		return nil, err
	}
	if err := a.store.ORM.WithContext(ctx).Model(&commentModel{}).Count(&comments).Error; err != nil {
		return nil, err
	}
	if err := a.store.ORM.WithContext(ctx).Model(&voteModel{}).Count(&votes).Error; err != nil {
		return nil, err
	}

	var commenters []topCommenter
	if err := a.store.ORM.WithContext(ctx).Model(&commentModel{}).
		Select("users.id AS user_id, users.name, COUNT(*) AS comments").
		Joins("JOIN users ON users.id = comments.user_id").
		Group("users.id, users.name").
		Order("comments DESC, users.name ASC").
		Limit(10).
		Scan(&commenters).Error; err != nil {
		return nil, err
	}

	return map[string]any{
		"totals": map[string]any{
			"users":    users,
			"comments": comments,
			"votes":    votes,
		},
		"activity_30d":   []activityPoint{},
		"top_commenters": commenters,
	}, nil
}

type groupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// handleCandidateStatistics reports approved-post counts by level and
// position, and user counts by provider.
func (a *API) handleCandidateStatistics(w http.ResponseWriter, r *http.Request) {
	a.respondCached(w, r, "statistics_candidates", statsCacheTTL, func(ctx context.Context) (any, error) {
		if a.store.DB != nil {
			byLevel := []groupCount{}
			if err := db.Select(ctx, a.store.DB, &byLevel,
				`SELECT level AS key, COUNT(*) AS count FROM posts WHERE status = $1 GROUP BY level ORDER BY count DESC`,
				statusApproved); err != nil {
				return nil, err
			}
			byPosition := []groupCount{}
			if err := db.Select(ctx, a.store.DB, &byPosition,
				`SELECT position AS key, COUNT(*) AS count FROM posts WHERE status = $1 GROUP BY position ORDER BY count DESC`,
				statusApproved); err != nil {
				return nil, err
			}
			byProvider := []groupCount{}
			if err := db.Select(ctx, a.store.DB, &byProvider,
				`SELECT provider AS key, COUNT(*) AS count FROM users GROUP BY provider ORDER BY count DESC`); err != nil {
				return nil, err
			}
			return map[string]any{
				"approved_by_level":    byLevel,
				"approved_by_position": byPosition,
				"users_by_provider":    byProvider,
			}, nil
		}

		byLevel := []groupCount{}
		if err := a.store.ORM.WithContext(ctx).Model(&postModel{}).
			Select("level AS key, COUNT(*) AS count").
			Where("status = ?", statusApproved).
			Group("level").Order("count DESC").
			Scan(&byLevel).Error; err != nil {
			return nil, err
		}
		byPosition := []groupCount{}
		if err := a.store.ORM.WithContext(ctx).Model(&postModel{}).
			Select("position AS key, COUNT(*) AS count").
			Where("status = ?", statusApproved).
			Group("position").Order("count DESC").
			Scan(&byPosition).Error; err != nil {
			return nil, err
		}
		byProvider := []groupCount{}
		if err := a.store.ORM.WithContext(ctx).Model(&userModel{}).
			Select("provider AS key, COUNT(*) AS count").
			Group("provider").Order("count DESC").
			Scan(&byProvider).Error; err != nil {
			return nil, err
		}
		return map[string]any{
			"approved_by_level":    byLevel,
			"approved_by_position": byPosition,
			"users_by_provider":    byProvider,
		}, nil
	})
}
