package api

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// handleToggleVote casts or withdraws the caller's vote on an approved post.
func (a *API) handleToggleVote(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	postID, err := postIDParam(r, "postId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		IsAnonymous bool `json:"is_anonymous"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var voted bool
	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&postModel{}).
			Where("id = ? AND status = ?", postID, statusApproved).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		var existing voteModel
		findErr := tx.Where("post_id = ? AND user_id = ?", postID, id.UserID).First(&existing).Error
		switch {
		case findErr == nil:
			voted = false
			return tx.Delete(&existing).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			voted = true
			return tx.Create(&voteModel{
				PostID:      postID,
				UserID:      id.UserID,
				IsAnonymous: req.IsAnonymous,
			}).Error
		default:
			return findErr
		}
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, errors.New("Post not found"))
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("vote toggle failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to vote"))
		return
	}

	var total int64
	if err := a.store.ORM.WithContext(ctx).Model(&voteModel{}).
		Where("post_id = ?", postID).Count(&total).Error; err != nil {
		a.log.Error().Err(err).Msg("vote count failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to vote"))
		return
	}

	if voted {
		respondJSON(w, http.StatusCreated, map[string]any{
			"voted":        true,
			"is_anonymous": req.IsAnonymous,
			"votes_count":  total,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"voted":       false,
		"votes_count": total,
	})
}

// handleVoteStatus reports the vote count and, for a logged-in viewer, their
// own vote state.
func (a *API) handleVoteStatus(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDParam(r, "postId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	viewer := a.optionalIdentity(r)

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var total int64
	if err := a.store.ORM.WithContext(ctx).Model(&voteModel{}).
		Where("post_id = ?", postID).Count(&total).Error; err != nil {
		a.log.Error().Err(err).Msg("vote status count failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load vote status"))
		return
	}

	hasVoted := false
	if viewer.UserID != "" {
		var mine int64
		if err := a.store.ORM.WithContext(ctx).Model(&voteModel{}).
			Where("post_id = ? AND user_id = ?", postID, viewer.UserID).
			Count(&mine).Error; err != nil {
			a.log.Error().Err(err).Msg("vote status viewer check failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to load vote status"))
			return
		}
		hasVoted = mine > 0
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"votes_count":    total,
		"user_has_voted": hasVoted,
	})
}
