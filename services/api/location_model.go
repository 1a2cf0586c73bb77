package api

import "time"

type regionModel struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	Code      string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	Name      string    `gorm:"type:text;not null"`
	PSGCCode  *string   `gorm:"column:psgc_code;type:varchar(20)"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (regionModel) TableName() string { return "regions" }

type provinceModel struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	RegionID  int64     `gorm:"not null;index"`
	Name      string    `gorm:"type:text;not null"`
	PSGCCode  *string   `gorm:"column:psgc_code;type:varchar(20)"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (provinceModel) TableName() string { return "provinces" }

type cityModel struct {
	ID           int64     `gorm:"type:bigserial;primaryKey"`
	RegionID     int64     `gorm:"not null;index"`
	ProvinceID   *int64    `gorm:"index"`
	ParentCityID *int64    `gorm:"index"`
	Name         string    `gorm:"type:text;not null"`
	Type         string    `gorm:"type:text;not null;default:'city'"`
	IsDistrict   bool      `gorm:"not null;default:false;index"`
	PSGCCode     *string   `gorm:"column:psgc_code;type:varchar(20);index"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (cityModel) TableName() string { return "cities" }

type barangayModel struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	CityID    int64     `gorm:"not null;index"`
	Name      string    `gorm:"type:text;not null"`
	PSGCCode  *string   `gorm:"column:psgc_code;type:varchar(20);index"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (barangayModel) TableName() string { return "barangays" }
