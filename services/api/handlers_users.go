package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
)

// handleUserProfile returns the caller's account plus their posts, comments,
// and votes in one payload.
func (a *API) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, err := a.users.FindByID(ctx, id.UserID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, ErrUserNotFound)
		return
	}

	var postModels []postModel
	if err := a.store.ORM.WithContext(ctx).
		Where("user_id = ?", id.UserID).
		Order("created_at DESC").
		Find(&postModels).Error; err != nil {
		a.log.Error().Err(err).Msg("profile posts query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load profile"))
		return
	}
	posts := make([]map[string]any, 0, len(postModels))
	for _, pm := range postModels {
		var votes, comments int64
		if err := a.store.ORM.WithContext(ctx).Model(&voteModel{}).Where("post_id = ?", pm.ID).Count(&votes).Error; err != nil {
			a.log.Error().Err(err).Msg("profile vote count failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to load profile"))
			return
		}
		if err := a.store.ORM.WithContext(ctx).Model(&commentModel{}).Where("post_id = ?", pm.ID).Count(&comments).Error; err != nil {
			a.log.Error().Err(err).Msg("profile comment count failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to load profile"))
			return
		}
		posts = append(posts, map[string]any{
			"post":           pm.toAPI(),
			"votes_count":    votes,
			"comments_count": comments,
		})
	}

	type profileComment struct {
		ID               int64     `json:"id"`
		PostID           int64     `json:"post_id"`
		Content          string    `json:"content"`
		IsAnonymous      bool      `json:"is_anonymous"`
		CreatedAt        time.Time `json:"created_at"`
		PostName         string    `json:"post_name"`
		PostProfilePhoto *string   `json:"post_profile_photo"`
	}
	var comments []profileComment
	if err := a.store.ORM.WithContext(ctx).Model(&commentModel{}).
		Select("comments.id, comments.post_id, comments.content, comments.is_anonymous, comments.created_at, posts.name AS post_name, posts.profile_photo AS post_profile_photo").
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("comments.user_id = ?", id.UserID).
		Order("comments.created_at DESC").
		Scan(&comments).Error; err != nil {
		a.log.Error().Err(err).Msg("profile comments query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load profile"))
		return
	}
	if comments == nil {
		comments = []profileComment{}
	}

	type profileVote struct {
		PostID      int64     `json:"post_id"`
		IsAnonymous bool      `json:"is_anonymous"`
		CreatedAt   time.Time `json:"created_at"`
		PostName    string    `json:"post_name"`
	}
	var votes []profileVote
	if err := a.store.ORM.WithContext(ctx).Model(&voteModel{}).
		Select("votes.post_id, votes.is_anonymous, votes.created_at, posts.name AS post_name").
		Joins("JOIN posts ON posts.id = votes.post_id").
		Where("votes.user_id = ?", id.UserID).
		Order("votes.created_at DESC").
		Scan(&votes).Error; err != nil {
		a.log.Error().Err(err).Msg("profile votes query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load profile"))
		return
	}
	if votes == nil {
		votes = []profileVote{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user":     user,
		"posts":    posts,
		"comments": comments,
		"votes":    votes,
	})
}

// handleUserUpdate applies a partial update to name, language, or image.
func (a *API) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req struct {
		Name     *string `json:"name"`
		Language *string `json:"language"`
		Image    *string `json:"image"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	errs := map[string]string{}
	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 255 {
			errs["name"] = "Name is required and may not exceed 255 characters."
		} else {
			updates["name"] = name
		}
	}
	if req.Language != nil {
		if *req.Language != "en" && *req.Language != "fil" {
			errs["language"] = "Language must be one of: en, fil."
		} else {
			updates["language"] = *req.Language
		}
	}
	if req.Image != nil {
		updates["image"] = *req.Image
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}
	updates["updated_at"] = time.Now().UTC()

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.store.ORM.WithContext(ctx).Model(&userModel{}).
		Where("id = ?", id.UserID).
		Updates(updates).Error; err != nil {
		a.log.Error().Err(err).Msg("user update failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to update profile"))
		return
	}

	user, err := a.users.FindByID(ctx, id.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errors.New("failed to update profile"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated.",
		"user":    user,
	})
}

// handleDeleteAccount removes the user and everything they own, then sweeps
// party lists left without members.
func (a *API) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var postIDs []int64
		if err := tx.Model(&postModel{}).Where("user_id = ?", id.UserID).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&partyListMemberModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&voteModel{}).Error; err != nil {
				return err
			}
			if err := tx.Exec(
				"DELETE FROM comment_likes WHERE comment_id IN (SELECT id FROM comments WHERE post_id IN ?)", postIDs,
			).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&commentModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", postIDs).Delete(&postModel{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id.UserID).Delete(&commentLikeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id.UserID).Delete(&commentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id.UserID).Delete(&voteModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id.UserID).Delete(&accountModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id.UserID).Delete(&sessionModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id.UserID).Delete(&userModel{}).Error
	})
	if err != nil {
		a.log.Error().Err(err).Msg("account deletion failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to delete account"))
		return
	}

	if err := a.cleanupEmptyPartyLists(ctx); err != nil {
		a.log.Warn().Err(err).Msg("empty party list sweep failed")
	}

	clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]any{"message": "Account deleted."})
}
