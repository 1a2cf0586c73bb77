package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

var postLevels = map[string]bool{
	"National":                  true,
	"Local (City/Municipality)": true,
	"Barangay":                  true,
}

type postRequest struct {
	Name         string           `json:"name"`
	Level        string           `json:"level"`
	Position     string           `json:"position"`
	Bio          string           `json:"bio"`
	Platform     *string          `json:"platform"`
	Education    []EducationEntry `json:"education"`
	Achievements []string         `json:"achievements"`
	Images       []PostImage      `json:"images"`
	ProfilePhoto *string          `json:"profile_photo"`
	Party        *string          `json:"party"`
	CityID       *int64           `json:"city_id"`
	DistrictID   *int64           `json:"district_id"`
	BarangayID   *int64           `json:"barangay_id"`
}

func (req *postRequest) validate() map[string]string {
	errs := map[string]string{}
	req.Name = strings.TrimSpace(req.Name)
	req.Position = strings.TrimSpace(req.Position)
	req.Bio = strings.TrimSpace(req.Bio)
	if req.Name == "" || len(req.Name) > 255 {
		errs["name"] = "Name is required and may not exceed 255 characters."
	}
	if !postLevels[req.Level] {
		errs["level"] = "Level must be one of: National, Local (City/Municipality), Barangay."
	}
	if req.Position == "" || len(req.Position) > 255 {
		errs["position"] = "Position is required and may not exceed 255 characters."
	}
	if req.Bio == "" || len(req.Bio) > 500 {
		errs["bio"] = "Bio is required and may not exceed 500 characters."
	}
	if req.Platform != nil && len(*req.Platform) > 1000 {
		errs["platform"] = "Platform may not exceed 1000 characters."
	}
	return errs
}

func postIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}

// handleCreatePost submits a candidate profile for moderation.
func (a *API) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	model := postModel{
		UserID:       id.UserID,
		Name:         req.Name,
		Level:        req.Level,
		Position:     req.Position,
		Bio:          req.Bio,
		Platform:     req.Platform,
		Education:    toJSONColumn(req.Education),
		Achievements: toJSONColumn(req.Achievements),
		Images:       toJSONColumn(req.Images),
		ProfilePhoto: req.ProfilePhoto,
		Party:        req.Party,
		CityID:       req.CityID,
		DistrictID:   req.DistrictID,
		BarangayID:   req.BarangayID,
		Status:       statusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		a.log.Error().Err(err).Msg("post create failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to create post"))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Post submitted for review.",
		"post":    model.toAPI(),
	})
}

// handleMyPosts lists the caller's posts regardless of status.
func (a *API) handleMyPosts(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var models []postModel
	if err := a.store.ORM.WithContext(ctx).
		Where("user_id = ?", id.UserID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		a.log.Error().Err(err).Msg("my posts query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load posts"))
		return
	}

	posts := make([]Post, 0, len(models))
	for _, m := range models {
		posts = append(posts, m.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

type listedPost struct {
	Post          Post       `json:"post"`
	Author        PostAuthor `json:"author"`
	VotesCount    int64      `json:"votes_count"`
	CommentsCount int64      `json:"comments_count"`
}

// handleApprovedPosts is the public feed of approved candidate profiles.
func (a *API) handleApprovedPosts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	listed, err := a.listPosts(ctx, statusApproved)
	if err != nil {
		a.log.Error().Err(err).Msg("approved posts query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load posts"))
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	respondJSON(w, http.StatusOK, map[string]any{"posts": listed})
}

func (a *API) listPosts(ctx context.Context, status string) ([]listedPost, error) {
	query := a.store.ORM.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var models []postModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	listed := make([]listedPost, 0, len(models))
	for _, m := range models {
		entry, err := a.decoratePost(ctx, m)
		if err != nil {
			return nil, err
		}
		listed = append(listed, entry)
	}
	return listed, nil
}

func (a *API) decoratePost(ctx context.Context, m postModel) (listedPost, error) {
	var author userModel
	if err := a.store.ORM.WithContext(ctx).Where("id = ?", m.UserID).First(&author).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return listedPost{}, err
		}
	}
	var votes, comments int64
	if err := a.store.ORM.WithContext(ctx).Model(&voteModel{}).Where("post_id = ?", m.ID).Count(&votes).Error; err != nil {
		return listedPost{}, err
	}
	if err := a.store.ORM.WithContext(ctx).Model(&commentModel{}).Where("post_id = ?", m.ID).Count(&comments).Error; err != nil {
		return listedPost{}, err
	}
	return listedPost{
		Post:          m.toAPI(),
		Author:        PostAuthor{ID: author.ID, Name: author.Name, Email: author.Email},
		VotesCount:    votes,
		CommentsCount: comments,
	}, nil
}

// handleGetPost returns one approved post with counts, the viewer's vote
// state, and the full comment tree.
func (a *API) handleGetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	viewer := a.optionalIdentity(r)

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var model postModel
	err = a.store.ORM.WithContext(ctx).
		Where("id = ? AND status = ?", postID, statusApproved).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, errors.New("Post not found"))
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("post query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load post"))
		return
	}

	entry, err := a.decoratePost(ctx, model)
	if err != nil {
		a.log.Error().Err(err).Msg("post decorate failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load post"))
		return
	}

	hasVoted := false
	if viewer.UserID != "" {
		var count int64
		if err := a.store.ORM.WithContext(ctx).Model(&voteModel{}).
			Where("post_id = ? AND user_id = ?", postID, viewer.UserID).
			Count(&count).Error; err != nil {
			a.log.Error().Err(err).Msg("vote state query failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to load post"))
			return
		}
		hasVoted = count > 0
	}

	comments, err := a.commentTree(ctx, postID, viewer.UserID)
	if err != nil {
		a.log.Error().Err(err).Msg("comment tree query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load post"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"post":           entry.Post,
		"author":         entry.Author,
		"votes_count":    entry.VotesCount,
		"comments_count": entry.CommentsCount,
		"user_has_voted": hasVoted,
		"comments":       comments,
	})
}

// handleUpdatePost lets the owner revise a post that is not currently
// approved. Any edit sends it back to the moderation queue.
func (a *API) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	postID, err := postIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var model postModel
	err = a.store.ORM.WithContext(ctx).Where("id = ?", postID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, errors.New("Post not found"))
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("post query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to update post"))
		return
	}
	if model.UserID != id.UserID {
		respondError(w, http.StatusForbidden, errors.New("You can only edit your own posts"))
		return
	}
	if model.Status == statusApproved {
		respondError(w, http.StatusForbidden, errors.New("Approved posts cannot be edited"))
		return
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"name":          req.Name,
		"level":         req.Level,
		"position":      req.Position,
		"bio":           req.Bio,
		"platform":      req.Platform,
		"education":     toJSONColumn(req.Education),
		"achievements":  toJSONColumn(req.Achievements),
		"images":        toJSONColumn(req.Images),
		"profile_photo": req.ProfilePhoto,
		"party":         req.Party,
		"city_id":       req.CityID,
		"district_id":   req.DistrictID,
		"barangay_id":   req.BarangayID,
		"status":        statusPending,
		"admin_notes":   nil,
		"rejected_at":   nil,
		"updated_at":    now,
	}
	if err := a.store.ORM.WithContext(ctx).Model(&postModel{}).
		Where("id = ?", postID).
		Updates(updates).Error; err != nil {
		a.log.Error().Err(err).Msg("post update failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to update post"))
		return
	}

	if err := a.store.ORM.WithContext(ctx).Where("id = ?", postID).First(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, errors.New("failed to update post"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Post updated and resubmitted for review.",
		"post":    model.toAPI(),
	})
}

// handleAdminPosts lists every post for the moderation dashboard.
func (a *API) handleAdminPosts(w http.ResponseWriter, r *http.Request) {
	a.respondAdminPosts(w, r, "")
}

// handleAdminPendingPosts lists only the moderation queue.
func (a *API) handleAdminPendingPosts(w http.ResponseWriter, r *http.Request) {
	a.respondAdminPosts(w, r, statusPending)
}

func (a *API) respondAdminPosts(w http.ResponseWriter, r *http.Request, status string) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	listed, err := a.listPosts(ctx, status)
	if err != nil {
		a.log.Error().Err(err).Msg("admin posts query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load posts"))
		return
	}

	type adminPost struct {
		listedPost
		PartyListManaged bool `json:"party_list_managed"`
	}
	out := make([]adminPost, 0, len(listed))
	for _, entry := range listed {
		var managed int64
		if err := a.store.ORM.WithContext(ctx).Model(&partyListMemberModel{}).
			Where("post_id = ?", entry.Post.ID).
			Count(&managed).Error; err != nil {
			a.log.Error().Err(err).Msg("party membership query failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to load posts"))
			return
		}
		out = append(out, adminPost{listedPost: entry, PartyListManaged: managed > 0})
	}
	respondJSON(w, http.StatusOK, map[string]any{"posts": out})
}

// handleApprovePost approves a post, linking it into its party list when the
// post names one.
func (a *API) handleApprovePost(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var partyListID *int64
	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model postModel
		if err := tx.Where("id = ?", postID).First(&model).Error; err != nil {
			return err
		}
		if model.Party != nil && strings.TrimSpace(*model.Party) != "" {
			listID, err := linkPostToPartyList(tx, model.ID, strings.TrimSpace(*model.Party))
			if err != nil {
				return err
			}
			partyListID = &listID
		}
		now := time.Now().UTC()
		return tx.Model(&postModel{}).Where("id = ?", postID).Updates(map[string]any{
			"status":      statusApproved,
			"approved_at": now,
			"rejected_at": nil,
			"updated_at":  now,
		}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, errors.New("Post not found"))
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("post approval failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to approve post"))
		return
	}

	a.publishJSON(r.Context(), postApprovedTopic, map[string]any{
		"post_id":       postID,
		"status":        statusApproved,
		"party_list_id": partyListID,
	})
	respondJSON(w, http.StatusOK, map[string]any{
		"message":       "Post approved.",
		"party_list_id": partyListID,
	})
}

// linkPostToPartyList joins the post to the active party list of the given
// name, creating the list when none exists. Already-linked posts are left
// alone.
func linkPostToPartyList(tx *gorm.DB, postID int64, party string) (int64, error) {
	var linked int64
	if err := tx.Model(&partyListMemberModel{}).Where("post_id = ?", postID).Count(&linked).Error; err != nil {
		return 0, err
	}

	var list partyListModel
	err := tx.Where("LOWER(name) = LOWER(?) AND is_active", party).First(&list).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		list = partyListModel{Name: party, MemberCount: 0, IsActive: true}
		if err := tx.Create(&list).Error; err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	}

	if linked > 0 {
		return list.ID, nil
	}

	var maxOrder int64
	if err := tx.Model(&partyListMemberModel{}).
		Where("party_list_id = ?", list.ID).
		Select("COALESCE(MAX(position_order), 0)").
		Scan(&maxOrder).Error; err != nil {
		return 0, err
	}
	if err := tx.Create(&partyListMemberModel{
		PartyListID:   list.ID,
		PostID:        postID,
		PositionOrder: int(maxOrder) + 1,
	}).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&partyListModel{}).
		Where("id = ?", list.ID).
		UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error; err != nil {
		return 0, err
	}
	return list.ID, nil
}

// handleRejectPost rejects a post with optional notes for the author.
func (a *API) handleRejectPost(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		AdminNotes *string `json:"admin_notes"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	result := a.store.ORM.WithContext(ctx).Model(&postModel{}).
		Where("id = ?", postID).
		Updates(map[string]any{
			"status":      statusRejected,
			"admin_notes": req.AdminNotes,
			"rejected_at": now,
			"approved_at": nil,
			"updated_at":  now,
		})
	if result.Error != nil {
		a.log.Error().Err(result.Error).Msg("post rejection failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to reject post"))
		return
	}
	if result.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, errors.New("Post not found"))
		return
	}

	a.publishJSON(r.Context(), postRejectedTopic, map[string]any{
		"post_id": postID,
		"status":  statusRejected,
	})
	respondJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Post %d rejected.", postID)})
}
