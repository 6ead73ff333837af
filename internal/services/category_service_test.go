package services

import (
	"testing"

	"github.com/baodantech/design-review-backend/internal/types"
)

func rule(key string, keywords string, order int) *types.CategoryRule {
	return &types.CategoryRule{
		Key:            key,
		Keywords:       []byte(keywords),
		SpecImageIndex: 2,
		SortOrder:      order,
	}
}

func TestMatchRule(t *testing.T) {
	rules := []*types.CategoryRule{
		rule("blanket", `["毯","blanket"]`, 0),
		rule("mug", `["杯","mug","cup"]`, 1),
		rule("broad", `["b"]`, 2),
	}

	tests := []struct {
		name    string
		label   string
		wantKey string
	}{
		{"cjk keyword", "毛毯", "blanket"},
		{"latin keyword case-insensitive", "Fleece Blanket 50x60", "blanket"},
		{"second rule", "陶瓷马克杯", "mug"},
		{"first match wins over later broad rule", "blue mug", "mug"},
		{"broad rule as last resort", "bag", "broad"},
		{"no match", "袜子", ""},
		{"empty label", "", ""},
		{"whitespace label", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchRule(rules, tt.label)
			if tt.wantKey == "" {
				if got != nil {
					t.Fatalf("expected no match, got %q", got.Key)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected match %q, got nil", tt.wantKey)
			}
			if got.Key != tt.wantKey {
				t.Fatalf("expected %q, got %q", tt.wantKey, got.Key)
			}
		})
	}
}

func TestMatchRuleOrderedBySlice(t *testing.T) {
	// The resolver trusts the slice order it is given; a keyword shared
	// by two rules resolves to the earlier one.
	rules := []*types.CategoryRule{
		rule("first", `["毯"]`, 0),
		rule("second", `["毯"]`, 1),
	}
	got := MatchRule(rules, "毛毯")
	if got == nil || got.Key != "first" {
		t.Fatalf("expected first, got %+v", got)
	}
}

func TestMatchRuleSkipsEmptyKeywords(t *testing.T) {
	rules := []*types.CategoryRule{
		rule("empties", `["", "  "]`, 0),
		rule("real", `["毯"]`, 1),
	}
	if got := MatchRule(rules, "毛毯"); got == nil || got.Key != "real" {
		t.Fatalf("expected real, got %+v", got)
	}
}
