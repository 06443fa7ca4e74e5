package models

import (
	"time"
)

// ScanResult is the structured answer of the vision model.
type ScanResult struct {
	PlantFound      bool     `json:"plantFound"`
	PlantName       *string  `json:"plantName"`
	HealthCondition *string  `json:"healthCondition"`
	Recommendations []string `json:"recommendations"`
	Reason          *string  `json:"reason"`
}

type Scan struct {
	ID         string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID     string     `json:"userId" gorm:"type:uuid;not null;index"`
	ImageURL   string     `json:"imageUrl" gorm:"type:text"`
	PlantFound bool       `json:"plantFound" gorm:"index"`
	Favorite   bool       `json:"favorite" gorm:"default:false"`
	Result     ScanResult `json:"result" gorm:"serializer:json;type:jsonb"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
