package types

import "time"

// GoodsImageLink pairs an image identity with a listing that currently
// references it in its carousel. The set is rebuilt wholesale on every
// carousel mutation, so it answers "which listings reference this image"
// but is never authoritative for content.
type GoodsImageLink struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Hash      string    `gorm:"column:hash;size:64;not null;index;uniqueIndex:uniq_goods_image" json:"hash"`
	ListingID int64     `gorm:"column:listing_id;not null;index;uniqueIndex:uniq_goods_image" json:"listing_id"`
	URL       string    `gorm:"column:url;not null" json:"url"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (GoodsImageLink) TableName() string { return "goods_image_link" }
