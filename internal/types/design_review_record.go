package types

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Review record lifecycle statuses. A record reaching StatusCompleted is
// terminal; nothing mutates it afterwards.
const (
	StatusGenerating = "generating"
	StatusAISelected = "ai_selected"
	StatusTabClosed  = "tab_closed"
	StatusApproved   = "approved"
	StatusFailed     = "failed"
	StatusCompleted  = "completed"
)

// PreApprovalStatuses are the source states from which a human can approve
// or fail a record.
var PreApprovalStatuses = []string{StatusGenerating, StatusAISelected, StatusTabClosed}

// SwitchTabStatuses additionally allow re-pointing a failed record at a new
// generation session.
var SwitchTabStatuses = []string{StatusGenerating, StatusAISelected, StatusTabClosed, StatusFailed}

// NonTerminalStatuses are every state the external finalize callback may
// complete from.
var NonTerminalStatuses = []string{StatusGenerating, StatusAISelected, StatusTabClosed, StatusApproved, StatusFailed}

type DesignCandidate struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type CheckResult struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

type Recommendation struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type Selection struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// DesignReviewRecord is the per-session review aggregate. Sequence, set and
// map fields live in jsonb columns; the decode helpers below tolerate
// malformed payloads by returning empty values, mirroring how the rest of
// the system treats missing data.
type DesignReviewRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID string    `gorm:"column:session_id;not null;index" json:"session_id"`
	ListingID int64     `gorm:"column:listing_id;not null;index" json:"listing_id"`
	Status    string    `gorm:"column:status;not null;default:'generating';index" json:"status"`

	ReferenceImages          datatypes.JSON `gorm:"column:reference_images;type:jsonb" json:"reference_images"`
	ExcludedReferenceIndices datatypes.JSON `gorm:"column:excluded_reference_indices;type:jsonb" json:"excluded_reference_indices"`
	DesignCandidates         datatypes.JSON `gorm:"column:design_candidates;type:jsonb" json:"design_candidates"`
	ExcludedCandidateIndices datatypes.JSON `gorm:"column:excluded_candidate_indices;type:jsonb" json:"excluded_candidate_indices"`
	CheckResults             datatypes.JSON `gorm:"column:check_results;type:jsonb" json:"check_results"`
	UploadedURLOverrides     datatypes.JSON `gorm:"column:uploaded_url_overrides;type:jsonb" json:"uploaded_url_overrides"`

	RecommendedIndex *int   `gorm:"column:recommended_index" json:"recommended_index,omitempty"`
	RecommendReason  string `gorm:"column:recommend_reason" json:"recommend_reason"`
	PromptSuggestion string `gorm:"column:prompt_suggestion" json:"prompt_suggestion"`

	SelectedIndex *int   `gorm:"column:selected_index" json:"selected_index,omitempty"`
	SelectedURL   string `gorm:"column:selected_url" json:"selected_url"`

	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
	ApprovedAt  *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (DesignReviewRecord) TableName() string { return "design_review_record" }

func (r *DesignReviewRecord) RefImages() []string {
	return decodeStringSlice(r.ReferenceImages)
}

func (r *DesignReviewRecord) Candidates() []DesignCandidate {
	if len(r.DesignCandidates) == 0 {
		return nil
	}
	var out []DesignCandidate
	if err := json.Unmarshal(r.DesignCandidates, &out); err != nil {
		return nil
	}
	return out
}

func (r *DesignReviewRecord) ExcludedRefs() []int {
	return decodeIntSlice(r.ExcludedReferenceIndices)
}

func (r *DesignReviewRecord) ExcludedCandidates() []int {
	return decodeIntSlice(r.ExcludedCandidateIndices)
}

// Checks decodes the sparse index->result map. Keys are stored as decimal
// strings because JSON objects cannot carry integer keys.
func (r *DesignReviewRecord) Checks() map[int]CheckResult {
	if len(r.CheckResults) == 0 {
		return nil
	}
	var raw map[string]CheckResult
	if err := json.Unmarshal(r.CheckResults, &raw); err != nil {
		return nil
	}
	out := make(map[int]CheckResult, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[idx] = v
	}
	return out
}

// Overrides decodes the 1-based position -> resolvable URL map used for
// locally uploaded candidates.
func (r *DesignReviewRecord) Overrides() map[int]string {
	if len(r.UploadedURLOverrides) == 0 {
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal(r.UploadedURLOverrides, &raw); err != nil {
		return nil
	}
	out := make(map[int]string, len(raw))
	for k, v := range raw {
		pos, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[pos] = v
	}
	return out
}

func EncodeStringSlice(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func EncodeIntSlice(v []int) datatypes.JSON {
	if v == nil {
		v = []int{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func EncodeCandidates(v []DesignCandidate) datatypes.JSON {
	if v == nil {
		v = []DesignCandidate{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func EncodeChecks(v map[int]CheckResult) datatypes.JSON {
	raw := make(map[string]CheckResult, len(v))
	for k, res := range v {
		raw[strconv.Itoa(k)] = res
	}
	b, _ := json.Marshal(raw)
	return datatypes.JSON(b)
}

func EncodeOverrides(v map[int]string) datatypes.JSON {
	raw := make(map[string]string, len(v))
	for k, u := range v {
		raw[strconv.Itoa(k)] = u
	}
	b, _ := json.Marshal(raw)
	return datatypes.JSON(b)
}

func decodeStringSlice(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeIntSlice(raw datatypes.JSON) []int {
	if len(raw) == 0 {
		return nil
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
