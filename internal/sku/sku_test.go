package sku

import (
	"testing"
)

func TestEnsureDimensionsParsesSize(t *testing.T) {
	skus := []map[string]any{
		{"size": "35.00x25.00x2.00 cm", "suggestedPrice": "19.9"},
	}
	got := EnsureDimensions(skus)
	u := got[0]
	if u["len"] != "35.00" || u["width"] != "25.00" || u["height"] != "2.00" {
		t.Fatalf("dimensions not parsed from size: %+v", u)
	}
	if u["suggestedPrice"] != "19.9" {
		t.Fatalf("price reformatted: %v", u["suggestedPrice"])
	}
	if u["weight"] != "0" {
		t.Fatalf("missing weight not defaulted: %v", u["weight"])
	}
}

func TestEnsureDimensionsKeepsExistingValues(t *testing.T) {
	skus := []map[string]any{
		{"len": "10", "width": "20.5", "height": "", "size": "1x2x3"},
	}
	u := EnsureDimensions(skus)[0]
	if u["len"] != "10.00" {
		t.Fatalf("existing len should only be reformatted: %v", u["len"])
	}
	if u["width"] != "20.50" {
		t.Fatalf("width = %v", u["width"])
	}
	// Only the empty height comes from the size string.
	if u["height"] != "3.00" {
		t.Fatalf("height = %v", u["height"])
	}
}

func TestEnsureDimensionsDefaultsWhenUnparseable(t *testing.T) {
	skus := []map[string]any{
		{"size": "one size"},
	}
	u := EnsureDimensions(skus)[0]
	if u["len"] != "0.00" || u["width"] != "0.00" || u["height"] != "0.00" {
		t.Fatalf("unparseable size must default dimensions: %+v", u)
	}
}

func TestEnsureDimensionsIgnoresPrefixedSize(t *testing.T) {
	skus := []map[string]any{
		{"size": "约 1x2x3"},
	}
	u := EnsureDimensions(skus)[0]
	if u["len"] != "0.00" || u["width"] != "0.00" || u["height"] != "0.00" {
		t.Fatalf("size with leading text must not parse: %+v", u)
	}
}

func TestEnsureDimensionsDoesNotMutateInput(t *testing.T) {
	in := []map[string]any{{"size": "1x2x3"}}
	_ = EnsureDimensions(in)
	if _, ok := in[0]["len"]; ok {
		t.Fatal("input map mutated")
	}
}

func TestRepointImagesMatchesByBaseURL(t *testing.T) {
	skus := []map[string]any{
		{"pic": "https://cdn.example.com/a.png?sign=1", "pic_url": "", "image": ""},
		{"pic": "https://cdn.example.com/b.png"},
	}
	got := RepointImages(skus, "https://cdn.example.com/a.png?other=2", "https://cdn.example.com/spec.png")
	if got[0]["pic"] != "https://cdn.example.com/spec.png" ||
		got[0]["pic_url"] != "https://cdn.example.com/spec.png" ||
		got[0]["image"] != "https://cdn.example.com/spec.png" {
		t.Fatalf("matching sku not repointed: %+v", got[0])
	}
	if got[1]["pic"] != "https://cdn.example.com/b.png" {
		t.Fatalf("non-matching sku touched: %+v", got[1])
	}
}

func TestRepointAll(t *testing.T) {
	skus := []map[string]any{
		{"pic": "x", "color": "red"},
		nil,
	}
	got := RepointAll(skus, "https://cdn.example.com/main.png")
	if got[0]["pic"] != "https://cdn.example.com/main.png" || got[0]["image"] != "https://cdn.example.com/main.png" {
		t.Fatalf("sku not repointed: %+v", got[0])
	}
	if got[0]["color"] != "red" {
		t.Fatal("unrelated fields must survive")
	}
	if got[1] != nil {
		t.Fatal("nil entries pass through")
	}
}

func TestRepointOrphans(t *testing.T) {
	carousel := []string{"https://cdn.example.com/main.png", "https://cdn.example.com/keep.png"}
	skus := []map[string]any{
		{"pic": "https://cdn.example.com/removed.png?v=1", "image": "https://cdn.example.com/keep.png"},
		{"pic": "https://cdn.example.com/gone-elsewhere.png", "image": "https://cdn.example.com/removed.png"},
	}
	got := RepointOrphans(skus, "https://cdn.example.com/removed.png", "https://cdn.example.com/main.png", carousel)
	if got[0]["pic"] != "https://cdn.example.com/main.png" {
		t.Fatalf("removed-image sku not repointed: %+v", got[0])
	}
	if got[0]["image"] != "https://cdn.example.com/keep.png" {
		t.Fatalf("still-valid image field touched: %+v", got[0])
	}
	if got[1]["pic"] != "https://cdn.example.com/main.png" || got[1]["image"] != "https://cdn.example.com/main.png" {
		t.Fatalf("orphaned references must move to the main image: %+v", got[1])
	}
}

func TestHasDiscardMarker(t *testing.T) {
	if !HasDiscardMarker("【⚠️已废弃】blanket") {
		t.Fatal("marker not detected")
	}
	if HasDiscardMarker("cozy blanket") {
		t.Fatal("false positive")
	}
}
