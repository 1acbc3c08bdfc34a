package recipe

import (
	"fmt"

	"chefos/internal/pkg/common"
)

// ReviewState 每項食材是否在手邊，預設全部勾選
type ReviewState map[string]bool

// NewReviewState 依食材集合建立勾選狀態
func NewReviewState(set *IngredientSet) ReviewState {
	state := make(ReviewState)
	if set == nil {
		return state
	}
	for _, item := range set.All() {
		state[item] = true
	}
	return state
}

// Toggle 設定食材是否在手邊；不在集合中的名稱回傳 common.ErrUnknownIngredient
func (r ReviewState) Toggle(name string, available bool) error {
	if _, ok := r[name]; !ok {
		return common.WrapError(common.ErrUnknownIngredient, fmt.Errorf("ingredient %q", name))
	}
	r[name] = available
	return nil
}

// Available 食材是否在手邊；未知名稱視為不在
func (r ReviewState) Available(name string) bool {
	return r[name]
}

// Clone 複製一份
func (r ReviewState) Clone() ReviewState {
	out := make(ReviewState, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Partition 由勾選狀態推導出的四個清單
type Partition struct {
	ConfirmedMandatory []string `json:"confirmed_mandatory"`
	MissingMandatory   []string `json:"missing_mandatory"`
	ConfirmedExtras    []string `json:"confirmed_extras"`
	MissingExtras      []string `json:"missing_extras"`
	MandatoryCount     int      `json:"mandatory_count"`
}

// NewPartition 依勾選狀態分割食材
func NewPartition(set *IngredientSet, review ReviewState) Partition {
	p := Partition{
		ConfirmedMandatory: []string{},
		MissingMandatory:   []string{},
		ConfirmedExtras:    []string{},
		MissingExtras:      []string{},
	}
	if set == nil {
		return p
	}

	p.MandatoryCount = len(set.Mandatory)
	for _, item := range set.Mandatory {
		if review.Available(item) {
			p.ConfirmedMandatory = append(p.ConfirmedMandatory, item)
		} else {
			p.MissingMandatory = append(p.MissingMandatory, item)
		}
	}
	for _, item := range set.Extras() {
		if review.Available(item) {
			p.ConfirmedExtras = append(p.ConfirmedExtras, item)
		} else {
			p.MissingExtras = append(p.MissingExtras, item)
		}
	}
	return p
}

// Blocked 有主要食材未勾選
func (p Partition) Blocked() bool {
	return len(p.ConfirmedMandatory) < p.MandatoryCount
}

// Ready 可以產生食譜：有主要食材且全部勾選
func (p Partition) Ready() bool {
	return p.MandatoryCount > 0 && !p.Blocked()
}

// Confirmed 全部已確認的食材
func (p Partition) Confirmed() []string {
	out := make([]string, 0, len(p.ConfirmedMandatory)+len(p.ConfirmedExtras))
	out = append(out, p.ConfirmedMandatory...)
	return append(out, p.ConfirmedExtras...)
}
