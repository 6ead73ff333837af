package types

import (
	"time"

	"gorm.io/datatypes"
)

// ImageLabel holds the classification payload for one image identity.
// Rows are written on the first successful labeling call for a hash and
// overwritten on re-labeling; normal flow never deletes them.
type ImageLabel struct {
	Hash      string         `gorm:"column:hash;primaryKey;size:64" json:"hash"`
	URL       string         `gorm:"column:url;not null" json:"url"`
	Labels    datatypes.JSON `gorm:"column:labels;type:jsonb" json:"labels"`
	Source    string         `gorm:"column:source" json:"source"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ImageLabel) TableName() string { return "image_label" }
