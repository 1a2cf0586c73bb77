package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// cleanupEmptyPartyLists removes lists that no longer have any members.
func (a *API) cleanupEmptyPartyLists(ctx context.Context) error {
	return a.store.ORM.WithContext(ctx).
		Where("id NOT IN (SELECT DISTINCT party_list_id FROM party_list_members)").
		Delete(&partyListModel{}).Error
}

// handleListPartyLists is the public directory of active lists with members.
func (a *API) handleListPartyLists(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var models []partyListModel
	if err := a.store.ORM.WithContext(ctx).
		Where("is_active AND member_count > 0").
		Order("name ASC").
		Find(&models).Error; err != nil {
		a.log.Error().Err(err).Msg("party list query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load party lists"))
		return
	}

	lists := make([]PartyList, 0, len(models))
	for _, m := range models {
		lists = append(lists, m.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"party_lists": lists})
}

// handleSearchPartyLists searches by name or acronym. Admin viewers also see
// inactive lists.
func (a *API) handleSearchPartyLists(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	viewer := a.optionalIdentity(r)

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	query := a.store.ORM.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(acronym) LIKE ?", "%"+strings.ToLower(q)+"%", "%"+strings.ToLower(q)+"%").
		Order("name ASC").
		Limit(10)
	if !viewer.IsAdmin {
		query = query.Where("is_active")
	}

	var models []partyListModel
	if err := query.Find(&models).Error; err != nil {
		a.log.Error().Err(err).Msg("party list search failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to search party lists"))
		return
	}

	lists := make([]PartyList, 0, len(models))
	for _, m := range models {
		lists = append(lists, m.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"party_lists": lists})
}

// handleGetPartyList returns one list with its member posts. A list that has
// lost all members is deleted on read and reported missing.
func (a *API) handleGetPartyList(w http.ResponseWriter, r *http.Request) {
	listID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || listID <= 0 {
		respondError(w, http.StatusBadRequest, errors.New("invalid party list id"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var list partyListModel
	err = a.store.ORM.WithContext(ctx).Where("id = ?", listID).First(&list).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, errors.New("Party list not found"))
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("party list query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load party list"))
		return
	}

	var memberModels []partyListMemberModel
	if err := a.store.ORM.WithContext(ctx).
		Where("party_list_id = ?", listID).
		Order("position_order ASC").
		Find(&memberModels).Error; err != nil {
		a.log.Error().Err(err).Msg("party list members query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load party list"))
		return
	}
	if len(memberModels) == 0 {
		if err := a.store.ORM.WithContext(ctx).Delete(&partyListModel{}, listID).Error; err != nil {
			a.log.Warn().Err(err).Msg("empty party list delete failed")
		}
		respondError(w, http.StatusNotFound, errors.New("Party list not found"))
		return
	}

	type partyListMember struct {
		PositionOrder int        `json:"position_order"`
		Post          Post       `json:"post"`
		Author        PostAuthor `json:"author"`
	}
	members := make([]partyListMember, 0, len(memberModels))
	for _, mm := range memberModels {
		var post postModel
		if err := a.store.ORM.WithContext(ctx).Where("id = ?", mm.PostID).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			a.log.Error().Err(err).Msg("party list member post query failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to load party list"))
			return
		}
		var author userModel
		if err := a.store.ORM.WithContext(ctx).Where("id = ?", post.UserID).First(&author).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			a.log.Error().Err(err).Msg("party list member author query failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to load party list"))
			return
		}
		members = append(members, partyListMember{
			PositionOrder: mm.PositionOrder,
			Post:          post.toAPI(),
			Author:        PostAuthor{ID: author.ID, Name: author.Name, Email: author.Email},
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"party_list": list.toAPI(),
		"members":    members,
	})
}

// handleAdminPartyLists lists every party list with live member counts after
// sweeping empties.
func (a *API) handleAdminPartyLists(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.cleanupEmptyPartyLists(ctx); err != nil {
		a.log.Warn().Err(err).Msg("empty party list sweep failed")
	}

	var models []partyListModel
	if err := a.store.ORM.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		a.log.Error().Err(err).Msg("admin party list query failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load party lists"))
		return
	}

	lists := make([]PartyList, 0, len(models))
	for _, m := range models {
		lists = append(lists, m.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"party_lists": lists})
}

// handleCreatePartyList creates a list seeded with its first member post.
func (a *API) handleCreatePartyList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Acronym     *string  `json:"acronym"`
		Description *string  `json:"description"`
		Sector      *string  `json:"sector"`
		Platform    []string `json:"platform"`
		PostID      int64    `json:"post_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	errs := map[string]string{}
	if req.Name == "" || len(req.Name) > 255 {
		errs["name"] = "Name is required and may not exceed 255 characters."
	}
	if req.PostID <= 0 {
		errs["post_id"] = "A seed post is required."
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var created partyListModel
	err := a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post postModel
		if err := tx.Where("id = ?", req.PostID).First(&post).Error; err != nil {
			return err
		}

		created = partyListModel{
			Name:        req.Name,
			Acronym:     req.Acronym,
			Description: req.Description,
			Sector:      req.Sector,
			Platform:    toJSONColumn(req.Platform),
			MemberCount: 1,
			IsActive:    true,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		if err := tx.Create(&partyListMemberModel{
			PartyListID:   created.ID,
			PostID:        req.PostID,
			PositionOrder: 1,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&postModel{}).Where("id = ?", req.PostID).
			Update("party", req.Name).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, errors.New("Post not found"))
		return
	}
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusBadRequest, errors.New("A party list with that name already exists"))
			return
		}
		a.log.Error().Err(err).Msg("party list create failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to create party list"))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message":    "Party list created.",
		"party_list": created.toAPI(),
	})
}

// handleAddPartyListMember appends a post to an existing list.
func (a *API) handleAddPartyListMember(w http.ResponseWriter, r *http.Request) {
	listID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || listID <= 0 {
		respondError(w, http.StatusBadRequest, errors.New("invalid party list id"))
		return
	}

	var req struct {
		PostID int64 `json:"post_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.PostID <= 0 {
		respondValidation(w, map[string]string{"post_id": "A post is required."})
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var list partyListModel
		if err := tx.Where("id = ?", listID).First(&list).Error; err != nil {
			return err
		}
		var post postModel
		if err := tx.Where("id = ?", req.PostID).First(&post).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&partyListMemberModel{}).
			Where("party_list_id = ? AND post_id = ?", listID, req.PostID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errDuplicateMember
		}

		var maxOrder int64
		if err := tx.Model(&partyListMemberModel{}).
			Where("party_list_id = ?", listID).
			Select("COALESCE(MAX(position_order), 0)").
			Scan(&maxOrder).Error; err != nil {
			return err
		}
		if err := tx.Create(&partyListMemberModel{
			PartyListID:   listID,
			PostID:        req.PostID,
			PositionOrder: int(maxOrder) + 1,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&partyListModel{}).Where("id = ?", listID).
			UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&postModel{}).Where("id = ?", req.PostID).
			Update("party", list.Name).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, errors.New("Party list or post not found"))
	case errors.Is(err, errDuplicateMember):
		respondError(w, http.StatusBadRequest, errDuplicateMember)
	case err != nil:
		a.log.Error().Err(err).Msg("party list member add failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to add member"))
	default:
		respondJSON(w, http.StatusOK, map[string]any{"message": "Member added."})
	}
}

var errDuplicateMember = errors.New("Post is already a member of this party list")
