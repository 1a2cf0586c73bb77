package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

const anonymousName = "Anonymous"

// commentTree loads all comments for a post and nests replies under their
// parents. Top-level comments come newest first, replies oldest first.
// Anonymous authors are masked unless the comment belongs to the viewer.
func (a *API) commentTree(ctx context.Context, postID int64, viewerID string) ([]*CommentNode, error) {
	type commentRow struct {
		ID          int64
		PostID      int64
		ParentID    *int64
		UserID      string
		UserName    string
		Content     string
		IsAnonymous bool
		LikesCount  int
		CreatedAt   time.Time
	}
	var rows []commentRow
	if err := a.store.ORM.WithContext(ctx).Model(&commentModel{}).
		Select("comments.id, comments.post_id, comments.parent_id, comments.user_id, users.name AS user_name, comments.content, comments.is_anonymous, comments.likes_count, comments.created_at").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	liked := map[int64]bool{}
	if viewerID != "" && len(rows) > 0 {
		var likedIDs []int64
		if err := a.store.ORM.WithContext(ctx).Model(&commentLikeModel{}).
			Where("user_id = ? AND comment_id IN (SELECT id FROM comments WHERE post_id = ?)", viewerID, postID).
			Pluck("comment_id", &likedIDs).Error; err != nil {
			return nil, err
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}

	nodes := make(map[int64]*CommentNode, len(rows))
	for _, row := range rows {
		name := row.UserName
		userID := row.UserID
		if row.IsAnonymous && row.UserID != viewerID {
			name = anonymousName
			userID = ""
		}
		nodes[row.ID] = &CommentNode{
			ID:           row.ID,
			PostID:       row.PostID,
			ParentID:     row.ParentID,
			UserID:       userID,
			UserName:     name,
			Content:      row.Content,
			IsAnonymous:  row.IsAnonymous,
			LikesCount:   row.LikesCount,
			CreatedAt:    row.CreatedAt,
			UserHasLiked: liked[row.ID],
			Replies:      []*CommentNode{},
		}
	}

	roots := []*CommentNode{}
	for _, row := range rows {
		node := nodes[row.ID]
		if row.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*row.ParentID]; ok {
			parent.Replies = append(parent.Replies, node)
		} else {
			roots = append(roots, node)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})
	return roots, nil
}

// handleListComments returns the comment tree for a post.
func (a *API) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDParam(r, "postId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	viewer := a.optionalIdentity(r)

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	comments, err := a.commentTree(ctx, postID, viewer.UserID)
	if err != nil {
		a.log.Error().Err(err).Msg("comment list failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load comments"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// handleCreateComment adds a comment or a reply to an approved post.
func (a *API) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	postID, err := postIDParam(r, "postId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Content     string `json:"content"`
		ParentID    *int64 `json:"parent_id"`
		IsAnonymous bool   `json:"is_anonymous"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || len(req.Content) > 1000 {
		respondValidation(w, map[string]string{"content": "Content is required and may not exceed 1000 characters."})
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var count int64
	if err := a.store.ORM.WithContext(ctx).Model(&postModel{}).
		Where("id = ? AND status = ?", postID, statusApproved).
		Count(&count).Error; err != nil {
		a.log.Error().Err(err).Msg("comment post check failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to create comment"))
		return
	}
	if count == 0 {
		respondError(w, http.StatusNotFound, errors.New("Post not found"))
		return
	}

	if req.ParentID != nil {
		var parent commentModel
		err := a.store.ORM.WithContext(ctx).Where("id = ?", *req.ParentID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && parent.PostID != postID) {
			respondError(w, http.StatusBadRequest, errors.New("Parent comment does not belong to this post"))
			return
		}
		if err != nil {
			a.log.Error().Err(err).Msg("parent comment check failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to create comment"))
			return
		}
	}

	now := time.Now().UTC()
	model := commentModel{
		PostID:      postID,
		ParentID:    req.ParentID,
		UserID:      id.UserID,
		Content:     req.Content,
		IsAnonymous: req.IsAnonymous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		a.log.Error().Err(err).Msg("comment create failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to create comment"))
		return
	}

	user, err := a.users.FindByID(ctx, id.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errors.New("failed to create comment"))
		return
	}
	name := user.Name
	userID := user.ID
	if model.IsAnonymous {
		name = anonymousName
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Comment posted.",
		"comment": CommentNode{
			ID:          model.ID,
			PostID:      model.PostID,
			ParentID:    model.ParentID,
			UserID:      userID,
			UserName:    name,
			Content:     model.Content,
			IsAnonymous: model.IsAnonymous,
			CreatedAt:   model.CreatedAt,
			Replies:     []*CommentNode{},
		},
	})
}

// handleToggleCommentLike likes or unlikes a comment, keeping the counter in
// step inside one transaction.
func (a *API) handleToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	commentID, err := postIDParam(r, "commentId")
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid comment id"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var liked bool
	var likesCount int
	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment commentModel
		if err := tx.Where("id = ?", commentID).First(&comment).Error; err != nil {
			return err
		}

		var existing commentLikeModel
		findErr := tx.Where("comment_id = ? AND user_id = ?", commentID, id.UserID).First(&existing).Error
		switch {
		case findErr == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := tx.Model(&commentModel{}).Where("id = ?", commentID).
				UpdateColumn("likes_count", gorm.Expr("GREATEST(likes_count - 1, 0)")).Error; err != nil {
				return err
			}
			liked = false
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			if err := tx.Create(&commentLikeModel{CommentID: commentID, UserID: id.UserID}).Error; err != nil {
				return err
			}
			if err := tx.Model(&commentModel{}).Where("id = ?", commentID).
				UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error; err != nil {
				return err
			}
			liked = true
		default:
			return findErr
		}

		return tx.Model(&commentModel{}).Where("id = ?", commentID).
			Select("likes_count").Scan(&likesCount).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, errors.New("Comment not found"))
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("comment like toggle failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to toggle like"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"liked":       liked,
		"likes_count": likesCount,
	})
}
