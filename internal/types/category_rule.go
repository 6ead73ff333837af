package types

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// CategoryRule maps a free-text category label to a review category via
// ordered substring keywords. Rules are always loaded as a whole ordered
// sequence; first match wins.
type CategoryRule struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Key            string         `gorm:"column:key;not null;uniqueIndex" json:"key"`
	DisplayName    string         `gorm:"column:display_name" json:"display_name"`
	Keywords       datatypes.JSON `gorm:"column:keywords;type:jsonb" json:"keywords"`
	SpecImageIndex int            `gorm:"column:spec_image_index;not null;default:2" json:"spec_image_index"`
	SpecImageURL   string         `gorm:"column:spec_image_url" json:"spec_image_url"`
	SortOrder      int            `gorm:"column:sort_order;not null;default:0;index" json:"sort_order"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (CategoryRule) TableName() string { return "category_rule" }

func (r *CategoryRule) KeywordList() []string {
	if len(r.Keywords) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(r.Keywords, &out); err != nil {
		return nil
	}
	return out
}
