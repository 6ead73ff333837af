// Package sku normalizes the loosely shaped SKU maps carried on a listing.
// Upstream templates disagree on field names (pic/pic_url/image) and on
// whether dimensions arrive as separate fields or embedded in a size
// string, so everything here works on map[string]any.
package sku

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/baodantech/design-review-backend/internal/imageid"
)

// imageFields are every key upstream uses for the SKU image URL. All are
// kept in sync when repointing so the catalog save picks the new image up
// regardless of which field it reads.
var imageFields = []string{"pic_url", "pic", "image"}

// Anchored: size strings parse only when the dimensions lead the value,
// so prefixed text like "约 1x2x3" is treated as unparseable.
var sizeRe = regexp.MustCompile(`^(\d+\.?\d*)\s*x\s*(\d+\.?\d*)\s*x\s*(\d+\.?\d*)`)

var dimensionFields = []string{"len", "width", "height"}
var numericStringFields = []string{"len", "width", "height", "suggestedPrice", "supplierPrice", "weight"}

func cloneSKU(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func emptyField(sku map[string]any, key string) bool {
	v, ok := sku[key]
	if !ok || v == nil {
		return true
	}
	s, isStr := v.(string)
	return isStr && s == ""
}

// EnsureDimensions fills missing len/width/height from the size field
// ("35.00x25.00x2.00 cm") and coerces the numeric-string fields into the
// string formats the catalog API expects: dimensions with two decimals,
// prices and weight as plain numbers. Existing values are never
// overwritten.
func EnsureDimensions(skus []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(skus))
	for _, s := range skus {
		if s == nil {
			out = append(out, s)
			continue
		}
		u := cloneSKU(s)
		missingDim := false
		for _, f := range dimensionFields {
			if emptyField(u, f) {
				missingDim = true
				break
			}
		}
		if missingDim {
			if size, ok := u["size"].(string); ok && size != "" {
				if m := sizeRe.FindStringSubmatch(size); m != nil {
					for i, f := range dimensionFields {
						if emptyField(u, f) {
							if parsed, err := strconv.ParseFloat(m[i+1], 64); err == nil {
								u[f] = fmt.Sprintf("%.2f", parsed)
							}
						}
					}
				}
			}
		}
		for _, f := range numericStringFields {
			isDim := f == "len" || f == "width" || f == "height"
			if emptyField(u, f) {
				if isDim {
					u[f] = "0.00"
				} else {
					u[f] = "0"
				}
				continue
			}
			raw := fmt.Sprintf("%v", u[f])
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				u[f] = raw
				continue
			}
			if isDim {
				u[f] = fmt.Sprintf("%.2f", parsed)
			} else if parsed == float64(int64(parsed)) {
				u[f] = strconv.FormatInt(int64(parsed), 10)
			} else {
				u[f] = strconv.FormatFloat(parsed, 'f', -1, 64)
			}
		}
		out = append(out, u)
	}
	return out
}

// RepointImages rewrites every SKU whose image matches oldURL (compared by
// normalized base URL) to point at newURL across all image fields.
func RepointImages(skus []map[string]any, oldURL, newURL string) []map[string]any {
	oldBase := imageid.Normalize(oldURL)
	out := make([]map[string]any, 0, len(skus))
	for _, s := range skus {
		if s == nil || oldBase == "" {
			out = append(out, s)
			continue
		}
		u := cloneSKU(s)
		hit := false
		for _, f := range imageFields {
			v, _ := u[f].(string)
			if v != "" && imageid.Normalize(v) == oldBase {
				hit = true
				break
			}
		}
		if hit {
			for _, f := range imageFields {
				u[f] = newURL
			}
		}
		out = append(out, u)
	}
	return out
}

// RepointAll forces every SKU image field to newURL. Used when the main
// carousel image changes and all spec images must follow it.
func RepointAll(skus []map[string]any, newURL string) []map[string]any {
	out := make([]map[string]any, 0, len(skus))
	for _, s := range skus {
		if s == nil {
			out = append(out, s)
			continue
		}
		u := cloneSKU(s)
		for _, f := range imageFields {
			u[f] = newURL
		}
		out = append(out, u)
	}
	return out
}

// RepointOrphans repoints SKUs whose image either matched the removed URL
// or no longer appears in the carousel at all, sending them to the main
// image. pic/pic_url move together; image is checked independently because
// legacy rows populated them from different sources.
func RepointOrphans(skus []map[string]any, removedURL, mainURL string, carousel []string) []map[string]any {
	removedBase := imageid.Normalize(removedURL)
	inCarousel := make(map[string]bool, len(carousel))
	for _, u := range carousel {
		if base := imageid.Normalize(u); base != "" {
			inCarousel[base] = true
		}
	}
	out := make([]map[string]any, 0, len(skus))
	for _, s := range skus {
		if s == nil {
			out = append(out, s)
			continue
		}
		u := cloneSKU(s)
		pic, _ := u["pic"].(string)
		img, _ := u["image"].(string)
		picBase := imageid.Normalize(pic)
		imgBase := imageid.Normalize(img)
		if picBase != "" && (picBase == removedBase || !inCarousel[picBase]) {
			u["pic"] = mainURL
			u["pic_url"] = mainURL
		}
		if imgBase != "" && (imgBase == removedBase || !inCarousel[imgBase]) {
			u["image"] = mainURL
		}
		out = append(out, u)
	}
	return out
}

// HasDiscardMarker reports whether a title already carries a discard marker.
func HasDiscardMarker(title string) bool {
	return strings.Contains(title, "⚠️已废弃") || strings.Contains(title, "⚠️废弃")
}
