package types

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Goods review / process statuses, mirrored from the upstream collector.
const (
	ReviewPending   = 0
	ReviewApproved  = 1
	ReviewDiscarded = 2

	ProcessDone = 2
)

// DiscardedTitleMarker is prepended to the title when a listing is
// discarded, so the state is visible in every downstream surface.
const DiscardedTitleMarker = "【⚠️已废弃】"

// Goods is a product listing pulled from the external collector. Carousel
// and SKU payloads stay in jsonb exactly as received; DisplacedImages
// remembers, per carousel position, the original URL that a spec-image
// substitution displaced.
type Goods struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	APIID              *int64         `gorm:"column:api_id;index" json:"api_id,omitempty"`
	ProductID          string         `gorm:"column:product_id;index" json:"goods_id"`
	ProductName        string         `gorm:"column:product_name" json:"title"`
	ExtCode            string         `gorm:"column:extcode" json:"extcode"`
	CarouselPicURLs    datatypes.JSON `gorm:"column:carousel_pic_urls;type:jsonb" json:"image_list"`
	SKUList            datatypes.JSON `gorm:"column:sku_list;type:jsonb" json:"sku_list"`
	DisplacedImages    datatypes.JSON `gorm:"column:displaced_images;type:jsonb" json:"displaced_images"`
	CategoryLabel      string         `gorm:"column:category_label" json:"category_label"`
	ProcessStatus      int            `gorm:"column:process_status;not null;default:0;index" json:"process_status"`
	ReviewStatus       int            `gorm:"column:review_status;not null;default:0;index" json:"review_status"`
	InfringementStatus *int           `gorm:"column:infringement_status" json:"infringement_status,omitempty"`
	IsPublish          int            `gorm:"column:is_publish;not null;default:0" json:"is_publish"`
	SaleCount          int            `gorm:"column:sale_count;not null;default:0" json:"sold_count"`
	OriginProductURL   string         `gorm:"column:origin_product_url" json:"url"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"create_time"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"update_time"`
}

func (Goods) TableName() string { return "goods" }

func (g *Goods) Carousel() []string {
	return decodeStringSlice(g.CarouselPicURLs)
}

// SKUs decodes the SKU list as loose maps; upstream SKU shapes vary by
// template so no fixed struct fits.
func (g *Goods) SKUs() []map[string]any {
	if len(g.SKUList) == 0 {
		return nil
	}
	var out []map[string]any
	if err := json.Unmarshal(g.SKUList, &out); err != nil {
		return nil
	}
	return out
}

func (g *Goods) Displaced() map[string]string {
	if len(g.DisplacedImages) == 0 {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(g.DisplacedImages, &out); err != nil {
		return nil
	}
	return out
}

func EncodeSKUs(v []map[string]any) datatypes.JSON {
	if v == nil {
		v = []map[string]any{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func EncodeStringMap(v map[string]string) datatypes.JSON {
	if v == nil {
		v = map[string]string{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
