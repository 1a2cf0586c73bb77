package api

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type locationFixture struct {
	Regions []struct {
		Code      string  `yaml:"code"`
		Name      string  `yaml:"name"`
		PSGCCode  *string `yaml:"psgc_code"`
		Provinces []struct {
			Name     string  `yaml:"name"`
			PSGCCode *string `yaml:"psgc_code"`
		} `yaml:"provinces"`
		Cities []struct {
			Name      string  `yaml:"name"`
			Type      string  `yaml:"type"`
			PSGCCode  *string `yaml:"psgc_code"`
			Districts []struct {
				Name     string  `yaml:"name"`
				PSGCCode *string `yaml:"psgc_code"`
			} `yaml:"districts"`
			Barangays []struct {
				Name     string  `yaml:"name"`
				PSGCCode *string `yaml:"psgc_code"`
			} `yaml:"barangays"`
		} `yaml:"cities"`
	} `yaml:"regions"`
}

// SeedLocations loads a YAML fixture of regions, provinces, cities,
// districts, and barangays. Existing region codes are skipped so the command
// can run repeatedly.
func SeedLocations(ctx context.Context, orm *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fixture locationFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	return orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, region := range fixture.Regions {
			var existing int64
			if err := tx.Model(&regionModel{}).Where("code = ?", region.Code).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}

			rm := regionModel{Code: region.Code, Name: region.Name, PSGCCode: region.PSGCCode}
			if err := tx.Create(&rm).Error; err != nil {
				return err
			}
			for _, province := range region.Provinces {
				pm := provinceModel{RegionID: rm.ID, Name: province.Name, PSGCCode: province.PSGCCode}
				if err := tx.Create(&pm).Error; err != nil {
					return err
				}
			}
			for _, city := range region.Cities {
				cityType := city.Type
				if cityType == "" {
					cityType = "city"
				}
				cm := cityModel{
					RegionID: rm.ID,
					Name:     city.Name,
					Type:     cityType,
					PSGCCode: city.PSGCCode,
				}
				if err := tx.Create(&cm).Error; err != nil {
					return err
				}
				for _, district := range city.Districts {
					dm := cityModel{
						RegionID:     rm.ID,
						ParentCityID: &cm.ID,
						Name:         district.Name,
						Type:         "district",
						IsDistrict:   true,
						PSGCCode:     district.PSGCCode,
					}
					if err := tx.Create(&dm).Error; err != nil {
						return err
					}
				}
				for _, barangay := range city.Barangays {
					bm := barangayModel{
						CityID:   cm.ID,
						Name:     barangay.Name,
						PSGCCode: barangay.PSGCCode,
					}
					if err := tx.Create(&bm).Error; err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}
