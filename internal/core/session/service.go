package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chefos/internal/core/recipe"
	"chefos/internal/infrastructure/metrics"
	"chefos/internal/pkg/common"

	"go.uber.org/zap"
)

// IngredientExtractor 食材分析
type IngredientExtractor interface {
	Extract(ctx context.Context, q recipe.DishQuery) (*recipe.IngredientSet, error)
}

// RecipeAdapter 食譜調整
type RecipeAdapter interface {
	Adapt(ctx context.Context, q recipe.DishQuery, confirmedMandatory, confirmedExtras, missingExtras []string) (*recipe.Recipe, error)
}

// Options 流程選項
type Options struct {
	MinServings     int
	MaxServings     int
	DefaultServings int
	// RawFallback 結構化食譜無法解析時，以原始文字作為降級食譜
	RawFallback bool
}

// 使用者動作名稱，用於指標
const (
	ActionAnalyze  = "analyze"
	ActionToggle   = "toggle"
	ActionGenerate = "generate"
	ActionReset    = "reset"
)

// Service 會話流程：分析、勾選、產生食譜、重設與匯出
type Service struct {
	store     *Store
	extractor IngredientExtractor
	adapter   RecipeAdapter
	opts      Options
	metrics   *metrics.Metrics
}

// NewService 創建會話服務
func NewService(store *Store, extractor IngredientExtractor, adapter RecipeAdapter, opts Options, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		extractor: extractor,
		adapter:   adapter,
		opts:      opts,
		metrics:   m,
	}
}

// Create 建立新會話
func (s *Service) Create() *View {
	sess := s.store.Create()
	return newView(sess.ID, sess.snapshot())
}

// Get 取得會話內容
func (s *Service) Get(id string) (*View, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return newView(sess.ID, sess.snapshot()), nil
}

// Delete 刪除會話
func (s *Service) Delete(id string) error {
	return s.store.Delete(id)
}

// Analyze 分析菜名。失敗時保留原本的狀態；主要食材為空時仍會安裝結果並回傳 ErrEmptyMandatoryList。
func (s *Service) Analyze(ctx context.Context, id, dishName string, servings int) (view *View, err error) {
	defer func() { s.observe(ActionAnalyze, err) }()

	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	q, err := s.validateQuery(dishName, servings)
	if err != nil {
		return nil, err
	}

	if !sess.busy.TryLock() {
		return nil, common.ErrRequestInFlight
	}
	defer sess.busy.Unlock()

	generation := sess.snapshot().generation

	// 已送出的模型呼叫不因用戶端斷線而取消，由供應商逾時限制
	set, err := s.extractor.Extract(context.WithoutCancel(ctx), q)
	if err != nil {
		common.LogWarn("食材分析失敗",
			zap.String("session_id", id),
			zap.String("dish", q.Name),
			zap.Error(err),
		)
		return nil, err
	}

	if !sess.replaceIf(generation, q, set) {
		return nil, common.WrapError(common.ErrConflict, errors.New("session was reset while analyzing"))
	}

	view = newView(sess.ID, sess.snapshot())
	if len(set.Mandatory) == 0 {
		return view, common.WrapError(common.ErrEmptyMandatoryList,
			fmt.Errorf("no mandatory ingredients found for %q", q.Name))
	}
	return view, nil
}

// Toggle 修改食材勾選，不呼叫模型
func (s *Service) Toggle(id, name string, available bool) (view *View, err error) {
	defer func() { s.observe(ActionToggle, err) }()

	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.snapshot().ingredients == nil {
		return nil, common.ErrNoDishAnalyzed
	}
	if err := sess.toggle(name, available); err != nil {
		return nil, err
	}
	return newView(sess.ID, sess.snapshot()), nil
}

// GenerateRecipe 產生食譜。主要食材未全部勾選時拒絕且不呼叫模型，原本的食譜保持不變。
func (s *Service) GenerateRecipe(ctx context.Context, id string) (view *View, err error) {
	defer func() { s.observe(ActionGenerate, err) }()

	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	if !sess.busy.TryLock() {
		return nil, common.ErrRequestInFlight
	}
	defer sess.busy.Unlock()

	st := sess.snapshot()
	if st.query == nil || st.ingredients == nil {
		return nil, common.ErrNoDishAnalyzed
	}
	if len(st.ingredients.Mandatory) == 0 {
		return nil, common.ErrEmptyMandatoryList
	}

	p := recipe.NewPartition(st.ingredients, st.review)
	if p.Blocked() {
		return nil, common.WrapError(common.ErrMissingMandatoryIngredient,
			fmt.Errorf("missing: %s", strings.Join(p.MissingMandatory, ", ")))
	}

	r, err := s.adapter.Adapt(context.WithoutCancel(ctx), *st.query, p.ConfirmedMandatory, p.ConfirmedExtras, p.MissingExtras)
	if err != nil {
		fallback, ok := s.rawFallback(err)
		if !ok {
			common.LogWarn("食譜調整失敗",
				zap.String("session_id", id),
				zap.String("dish", st.query.Name),
				zap.Error(err),
			)
			return nil, err
		}
		common.LogWarn("食譜無法解析，改用原始文字",
			zap.String("session_id", id),
			zap.String("dish", st.query.Name),
		)
		r = fallback
	}

	if !sess.setRecipeIf(st.generation, r) {
		return nil, common.WrapError(common.ErrConflict, errors.New("ingredients changed while generating"))
	}
	return newView(sess.ID, sess.snapshot()), nil
}

// rawFallback 結構化解析失敗但有原始文字時，轉為降級的敘述式食譜
func (s *Service) rawFallback(err error) (*recipe.Recipe, bool) {
	if !s.opts.RawFallback {
		return nil, false
	}
	var ue *recipe.UnparsableError
	if !errors.As(err, &ue) || ue.Stage != recipe.StageAdapt || strings.TrimSpace(ue.Raw) == "" {
		return nil, false
	}
	return &recipe.Recipe{
		Mode:        recipe.OutputNarrative,
		Narrative:   ue.Raw,
		Ingredients: []string{},
		Steps:       []string{},
		Degraded:    true,
	}, true
}

// Reset 捨棄所有會話狀態
func (s *Service) Reset(id string) (view *View, err error) {
	defer func() { s.observe(ActionReset, err) }()

	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	sess.Clear()
	return newView(sess.ID, sess.snapshot()), nil
}

// Export 匯出 markdown 文字
func (s *Service) Export(id string) (string, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return "", err
	}
	st := sess.snapshot()
	if st.query == nil || st.ingredients == nil {
		return "", common.ErrNoDishAnalyzed
	}
	return recipe.RenderMarkdown(*st.query, recipe.NewPartition(st.ingredients, st.review), st.recipe), nil
}

// validateQuery 菜名去空白後不可為空，份量須在範圍內（0 代表預設值）
func (s *Service) validateQuery(dishName string, servings int) (recipe.DishQuery, error) {
	name := strings.TrimSpace(dishName)
	if name == "" {
		return recipe.DishQuery{}, common.WrapError(common.ErrInvalidDish, errors.New("dish name is required"))
	}
	if servings == 0 {
		servings = s.opts.DefaultServings
	}
	if servings < s.opts.MinServings || servings > s.opts.MaxServings {
		return recipe.DishQuery{}, common.WrapError(common.ErrInvalidDish,
			fmt.Errorf("servings must be between %d and %d", s.opts.MinServings, s.opts.MaxServings))
	}
	return recipe.DishQuery{Name: name, Servings: servings}, nil
}

func (s *Service) observe(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if ce, ok := common.AsCustomError(err); ok {
			result = strings.ToLower(ce.Code)
		}
	}
	s.metrics.ObservePipeline(action, result)
}
