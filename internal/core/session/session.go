package session

import (
	"sync"
	"time"

	"chefos/internal/core/recipe"
)

// Session 單一使用者的烹飪流程狀態：DishQuery → IngredientSet → ReviewState → Recipe
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	lastAccess  time.Time
	generation  uint64
	query       *recipe.DishQuery
	ingredients *recipe.IngredientSet
	review      recipe.ReviewState
	recipe      *recipe.Recipe

	// busy 同一時間只允許一個呼叫模型的動作
	busy sync.Mutex
}

// New 建立空白會話
func New(id string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		lastAccess: now,
	}
}

// state 會話狀態的一致快照
type state struct {
	generation  uint64
	query       *recipe.DishQuery
	ingredients *recipe.IngredientSet
	review      recipe.ReviewState
	recipe      *recipe.Recipe
}

func (s *Session) snapshot() state {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := state{
		generation:  s.generation,
		query:       s.query,
		ingredients: s.ingredients,
		recipe:      s.recipe,
	}
	if s.review != nil {
		st.review = s.review.Clone()
	}
	return st
}

// Replace 安裝新的食材集合，並捨棄舊的勾選與食譜
func (s *Session) Replace(q recipe.DishQuery, set *recipe.IngredientSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(q, set)
}

func (s *Session) replaceLocked(q recipe.DishQuery, set *recipe.IngredientSet) {
	s.generation++
	s.query = &q
	s.ingredients = set
	s.review = recipe.NewReviewState(set)
	s.recipe = nil
}

// replaceIf 只有在會話未被重設或替換時才安裝
func (s *Session) replaceIf(generation uint64, q recipe.DishQuery, set *recipe.IngredientSet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.replaceLocked(q, set)
	return true
}

// Clear 回到尚未輸入菜名的狀態
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.query = nil
	s.ingredients = nil
	s.review = nil
	s.recipe = nil
}

// toggle 修改勾選狀態
func (s *Session) toggle(name string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.review.Toggle(name, available)
}

// setRecipeIf 只有在食材集合未變動時才寫入食譜
func (s *Session) setRecipeIf(generation uint64, r *recipe.Recipe) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.recipe = r
	return true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}
