package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bayanihan/pkg/cache"
)

// respondCached is the cached read path shared by the location and statistics
// endpoints: serve from the KV store when present, otherwise build, cache for
// the TTL, and serve. Cache failures fall through to the builder.
func (a *API) respondCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, build func(context.Context) (any, error)) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if raw, err := a.store.Cache.Get(ctx, key); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(raw))
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		a.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	payload, err := build(ctx)
	if err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("cached payload build failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to load data"))
		return
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errors.New("failed to load data"))
		return
	}
	if err := a.store.Cache.Put(ctx, key, string(encoded), ttl); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

func queryID(r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleRegions lists every region.
func (a *API) handleRegions(w http.ResponseWriter, r *http.Request) {
	a.respondCached(w, r, "locations_regions", locationCacheTTL, func(ctx context.Context) (any, error) {
		var regions []regionModel
		if err := a.store.ORM.WithContext(ctx).Order("code ASC").Find(&regions).Error; err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(regions))
		for _, region := range regions {
			out = append(out, map[string]any{
				"id":        region.ID,
				"code":      region.Code,
				"name":      region.Name,
				"psgc_code": region.PSGCCode,
			})
		}
		return map[string]any{"regions": out}, nil
	})
}

// handleProvinces lists provinces, optionally scoped to a region.
func (a *API) handleProvinces(w http.ResponseWriter, r *http.Request) {
	regionID, hasRegion := queryID(r, "region_id")
	key := "locations_provinces"
	if hasRegion {
		key = fmt.Sprintf("locations_provinces_%d", regionID)
	}
	a.respondCached(w, r, key, locationCacheTTL, func(ctx context.Context) (any, error) {
		query := a.store.ORM.WithContext(ctx).Order("name ASC")
		if hasRegion {
			query = query.Where("region_id = ?", regionID)
		}
		var provinces []provinceModel
		if err := query.Find(&provinces).Error; err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(provinces))
		for _, province := range provinces {
			out = append(out, map[string]any{
				"id":        province.ID,
				"region_id": province.RegionID,
				"name":      province.Name,
				"psgc_code": province.PSGCCode,
			})
		}
		return map[string]any{"provinces": out}, nil
	})
}

// handleCities lists non-district cities and municipalities, flagging those
// that contain legislative districts.
func (a *API) handleCities(w http.ResponseWriter, r *http.Request) {
	regionID, hasRegion := queryID(r, "region_id")
	key := "locations_cities"
	if hasRegion {
		key = fmt.Sprintf("locations_cities_%d", regionID)
	}
	a.respondCached(w, r, key, locationCacheTTL, func(ctx context.Context) (any, error) {
		query := a.store.ORM.WithContext(ctx).Where("is_district = false").Order("name ASC")
		if hasRegion {
			query = query.Where("region_id = ?", regionID)
		}
		var cities []cityModel
		if err := query.Find(&cities).Error; err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(cities))
		for _, city := range cities {
			var districts int64
			if err := a.store.ORM.WithContext(ctx).Model(&cityModel{}).
				Where("parent_city_id = ? AND is_district = true", city.ID).
				Count(&districts).Error; err != nil {
				return nil, err
			}
			out = append(out, map[string]any{
				"id":            city.ID,
				"region_id":     city.RegionID,
				"province_id":   city.ProvinceID,
				"name":          city.Name,
				"type":          city.Type,
				"psgc_code":     city.PSGCCode,
				"has_districts": districts > 0,
			})
		}
		return map[string]any{"cities": out}, nil
	})
}

// handleDistricts lists the legislative districts of a city.
func (a *API) handleDistricts(w http.ResponseWriter, r *http.Request) {
	cityID, ok := queryID(r, "city_id")
	if !ok {
		respondError(w, http.StatusBadRequest, errors.New("city_id is required"))
		return
	}
	a.respondCached(w, r, fmt.Sprintf("locations_districts_%d", cityID), locationCacheTTL, func(ctx context.Context) (any, error) {
		var districts []cityModel
		if err := a.store.ORM.WithContext(ctx).
			Where("parent_city_id = ? AND is_district = true", cityID).
			Order("psgc_code ASC").
			Find(&districts).Error; err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(districts))
		for _, district := range districts {
			out = append(out, map[string]any{
				"id":        district.ID,
				"name":      district.Name,
				"psgc_code": district.PSGCCode,
			})
		}
		return map[string]any{"districts": out}, nil
	})
}

// handleBarangays lists barangays under a district or city. district_id wins
// when both are present.
func (a *API) handleBarangays(w http.ResponseWriter, r *http.Request) {
	districtID, hasDistrict := queryID(r, "district_id")
	cityID, hasCity := queryID(r, "city_id")
	if !hasDistrict && !hasCity {
		respondError(w, http.StatusBadRequest, errors.New("city_id or district_id is required"))
		return
	}

	parentID := cityID
	if hasDistrict {
		parentID = districtID
	}
	a.respondCached(w, r, fmt.Sprintf("locations_barangays_%d", parentID), locationCacheTTL, func(ctx context.Context) (any, error) {
		var barangays []barangayModel
		if err := a.store.ORM.WithContext(ctx).
			Where("city_id = ?", parentID).
			Order("psgc_code ASC").
			Find(&barangays).Error; err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(barangays))
		for _, barangay := range barangays {
			out = append(out, map[string]any{
				"id":        barangay.ID,
				"city_id":   barangay.CityID,
				"name":      barangay.Name,
				"psgc_code": barangay.PSGCCode,
			})
		}
		return map[string]any{"barangays": out}, nil
	})
}
