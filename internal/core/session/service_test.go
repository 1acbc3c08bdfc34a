package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chefos/internal/core/recipe"
	"chefos/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	set   *recipe.IngredientSet
	err   error
	calls int
	// block 在回傳前等待，用來模擬進行中的呼叫
	block chan struct{}
	// started 呼叫開始時關閉
	started chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, q recipe.DishQuery) (*recipe.IngredientSet, error) {
	f.calls++
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

type fakeAdapter struct {
	recipe  *recipe.Recipe
	err     error
	calls   int
	lastArg struct {
		query              recipe.DishQuery
		confirmedMandatory []string
		confirmedExtras    []string
		missingExtras      []string
	}
}

func (f *fakeAdapter) Adapt(ctx context.Context, q recipe.DishQuery, confirmedMandatory, confirmedExtras, missingExtras []string) (*recipe.Recipe, error) {
	f.calls++
	f.lastArg.query = q
	f.lastArg.confirmedMandatory = confirmedMandatory
	f.lastArg.confirmedExtras = confirmedExtras
	f.lastArg.missingExtras = missingExtras
	if f.err != nil {
		return nil, f.err
	}
	return f.recipe, nil
}

func butterChickenSet() *recipe.IngredientSet {
	return &recipe.IngredientSet{
		Mandatory:     []string{"Chicken", "Butter", "Tomato"},
		Substitutable: []string{"Cream", "Ghee"},
		Staple:        []string{"Oil", "Salt"},
	}
}

func defaultOptions() Options {
	return Options{MinServings: 1, MaxServings: 8, DefaultServings: 2, RawFallback: true}
}

func newTestService(ex IngredientExtractor, ad RecipeAdapter, opts Options) (*Service, string) {
	svc := NewService(NewStore(time.Hour, nil), ex, ad, opts, nil)
	return svc, svc.Create().ID
}

func TestScenario_ButterChicken(t *testing.T) {
	ex := &fakeExtractor{set: butterChickenSet()}
	ad := &fakeAdapter{recipe: &recipe.Recipe{Mode: recipe.OutputNarrative, Narrative: "The Fix: cashew paste."}}
	svc, id := newTestService(ex, ad, defaultOptions())
	ctx := context.Background()

	view, err := svc.Analyze(ctx, id, "  Butter Chicken ", 0)
	require.NoError(t, err)
	assert.Equal(t, &recipe.DishQuery{Name: "Butter Chicken", Servings: 2}, view.Query)
	assert.True(t, view.CanGenerate)
	assert.False(t, view.EmptyMandatory)
	for _, item := range view.Ingredients.Mandatory {
		assert.True(t, item.Available)
	}

	view, err = svc.Toggle(id, "Cream", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cream"}, view.MissingExtras)
	assert.True(t, view.CanGenerate)

	view, err = svc.GenerateRecipe(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, view.Recipe)
	assert.Equal(t, 1, ad.calls)
	assert.Equal(t, []string{"Chicken", "Butter", "Tomato"}, ad.lastArg.confirmedMandatory)
	assert.Equal(t, []string{"Ghee", "Oil", "Salt"}, ad.lastArg.confirmedExtras)
	assert.Equal(t, []string{"Cream"}, ad.lastArg.missingExtras)
}

func TestAnalyze_ValidatesQuery(t *testing.T) {
	ex := &fakeExtractor{set: butterChickenSet()}
	svc, id := newTestService(ex, &fakeAdapter{}, defaultOptions())

	_, err := svc.Analyze(context.Background(), id, "   ", 2)
	assert.ErrorIs(t, err, common.ErrInvalidDish)

	_, err = svc.Analyze(context.Background(), id, "Dal", 9)
	assert.ErrorIs(t, err, common.ErrInvalidDish)

	_, err = svc.Analyze(context.Background(), id, "Dal", -1)
	assert.ErrorIs(t, err, common.ErrInvalidDish)

	assert.Equal(t, 0, ex.calls)
}

func TestAnalyze_FailureKeepsPriorState(t *testing.T) {
	ex := &fakeExtractor{set: butterChickenSet()}
	svc, id := newTestService(ex, &fakeAdapter{}, defaultOptions())
	ctx := context.Background()

	_, err := svc.Analyze(ctx, id, "Butter Chicken", 2)
	require.NoError(t, err)
	_, err = svc.Toggle(id, "Ghee", false)
	require.NoError(t, err)

	ex.err = common.WrapError(common.ErrConnection, errors.New("timeout"))
	_, err = svc.Analyze(ctx, id, "Pad Thai", 2)
	assert.ErrorIs(t, err, common.ErrConnection)

	view, err := svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Butter Chicken", view.Query.Name)
	assert.Equal(t, []string{"Ghee"}, view.MissingExtras)
}

func TestAnalyze_UnparsableSurfacesTypedError(t *testing.T) {
	ex := &fakeExtractor{err: &recipe.UnparsableError{
		Stage: recipe.StageExtract,
		Raw:   "no json here",
		Err:   common.WrapError(common.ErrUnparsableResponse, common.ErrNoJSONObject),
	}}
	svc, id := newTestService(ex, &fakeAdapter{}, defaultOptions())

	_, err := svc.Analyze(context.Background(), id, "Butter Chicken", 2)
	assert.ErrorIs(t, err, common.ErrUnparsableResponse)

	view, _ := svc.Get(id)
	assert.Nil(t, view.Query)
}

func TestScenario_EmptyMandatoryBlocks(t *testing.T) {
	ex := &fakeExtractor{set: &recipe.IngredientSet{Mandatory: []string{}, Substitutable: []string{"Cream"}, Staple: []string{}}}
	ad := &fakeAdapter{recipe: &recipe.Recipe{}}
	svc, id := newTestService(ex, ad, defaultOptions())
	ctx := context.Background()

	view, err := svc.Analyze(ctx, id, "Mystery Stew", 2)
	assert.ErrorIs(t, err, common.ErrEmptyMandatoryList)
	require.NotNil(t, view)
	assert.False(t, view.CanGenerate)
	assert.True(t, view.EmptyMandatory)

	// 重新讀取時仍能分辨「沒有主要食材」與「可以產生」
	view, err = svc.Get(id)
	require.NoError(t, err)
	assert.True(t, view.EmptyMandatory)
	assert.False(t, view.Blocked)
	assert.False(t, view.CanGenerate)

	_, err = svc.GenerateRecipe(ctx, id)
	assert.ErrorIs(t, err, common.ErrEmptyMandatoryList)
	assert.Equal(t, 0, ad.calls)
}

func TestScenario_UncheckedMandatoryRefused(t *testing.T) {
	ex := &fakeExtractor{set: butterChickenSet()}
	first := &recipe.Recipe{Mode: recipe.OutputNarrative, Narrative: "first"}
	ad := &fakeAdapter{recipe: first}
	svc, id := newTestService(ex, ad, defaultOptions())
	ctx := context.Background()

	_, err := svc.Analyze(ctx, id, "Butter Chicken", 2)
	require.NoError(t, err)
	_, err = svc.GenerateRecipe(ctx, id)
	require.NoError(t, err)

	view, err := svc.Toggle(id, "Tomato", false)
	require.NoError(t, err)
	assert.True(t, view.Blocked)
	assert.Equal(t, []string{"Tomato"}, view.MissingMandatory)

	ad.recipe = &recipe.Recipe{Mode: recipe.OutputNarrative, Narrative: "second"}
	_, err = svc.GenerateRecipe(ctx, id)
	assert.ErrorIs(t, err, common.ErrMissingMandatoryIngredient)
	assert.Equal(t, 1, ad.calls)

	view, err = svc.Get(id)
	require.NoError(t, err)
	assert.Same(t, first, view.Recipe)
}

func TestGenerateRecipe_RequiresAnalysis(t *testing.T) {
	ad := &fakeAdapter{}
	svc, id := newTestService(&fakeExtractor{}, ad, defaultOptions())

	_, err := svc.GenerateRecipe(context.Background(), id)
	assert.ErrorIs(t, err, common.ErrNoDishAnalyzed)
	assert.Equal(t, 0, ad.calls)
}

func TestGenerateRecipe_RawFallback(t *testing.T) {
	unparsable := &recipe.UnparsableError{
		Stage: recipe.StageAdapt,
		Raw:   "Cook the chicken slowly.",
		Err:   common.WrapError(common.ErrUnparsableResponse, common.ErrNoJSONObject),
	}
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		svc, id := newTestService(&fakeExtractor{set: butterChickenSet()}, &fakeAdapter{err: unparsable}, defaultOptions())
		_, err := svc.Analyze(ctx, id, "Butter Chicken", 2)
		require.NoError(t, err)

		view, err := svc.GenerateRecipe(ctx, id)
		require.NoError(t, err)
		assert.True(t, view.Recipe.Degraded)
		assert.Equal(t, recipe.OutputNarrative, view.Recipe.Mode)
		assert.Equal(t, "Cook the chicken slowly.", view.Recipe.Narrative)
	})

	t.Run("disabled", func(t *testing.T) {
		opts := defaultOptions()
		opts.RawFallback = false
		svc, id := newTestService(&fakeExtractor{set: butterChickenSet()}, &fakeAdapter{err: unparsable}, opts)
		_, err := svc.Analyze(ctx, id, "Butter Chicken", 2)
		require.NoError(t, err)

		_, err = svc.GenerateRecipe(ctx, id)
		assert.ErrorIs(t, err, common.ErrUnparsableResponse)
	})
}

func TestToggle_Errors(t *testing.T) {
	svc, id := newTestService(&fakeExtractor{set: butterChickenSet()}, &fakeAdapter{}, defaultOptions())

	_, err := svc.Toggle(id, "Chicken", false)
	assert.ErrorIs(t, err, common.ErrNoDishAnalyzed)

	_, err = svc.Analyze(context.Background(), id, "Butter Chicken", 2)
	require.NoError(t, err)

	_, err = svc.Toggle(id, "Paneer", false)
	assert.ErrorIs(t, err, common.ErrUnknownIngredient)

	_, err = svc.Toggle("no-such-session", "Chicken", false)
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestReset_ClearsEverything(t *testing.T) {
	ad := &fakeAdapter{recipe: &recipe.Recipe{Mode: recipe.OutputNarrative, Narrative: "x"}}
	svc, id := newTestService(&fakeExtractor{set: butterChickenSet()}, ad, defaultOptions())
	ctx := context.Background()

	_, err := svc.Analyze(ctx, id, "Butter Chicken", 2)
	require.NoError(t, err)
	_, err = svc.GenerateRecipe(ctx, id)
	require.NoError(t, err)

	view, err := svc.Reset(id)
	require.NoError(t, err)
	assert.Nil(t, view.Query)
	assert.Nil(t, view.Ingredients)
	assert.Nil(t, view.Recipe)

	_, err = svc.Export(id)
	assert.ErrorIs(t, err, common.ErrNoDishAnalyzed)
}

func TestAnalyze_NewDishReplacesState(t *testing.T) {
	ex := &fakeExtractor{set: butterChickenSet()}
	ad := &fakeAdapter{recipe: &recipe.Recipe{Mode: recipe.OutputNarrative, Narrative: "x"}}
	svc, id := newTestService(ex, ad, defaultOptions())
	ctx := context.Background()

	_, err := svc.Analyze(ctx, id, "Butter Chicken", 2)
	require.NoError(t, err)
	_, err = svc.Toggle(id, "Cream", false)
	require.NoError(t, err)
	_, err = svc.GenerateRecipe(ctx, id)
	require.NoError(t, err)

	ex.set = &recipe.IngredientSet{Mandatory: []string{"Rice Noodles"}, Substitutable: []string{"Tamarind"}, Staple: []string{}}
	view, err := svc.Analyze(ctx, id, "Pad Thai", 3)
	require.NoError(t, err)
	assert.Nil(t, view.Recipe)
	assert.Empty(t, view.MissingExtras)
	assert.Equal(t, "Rice Noodles", view.Ingredients.Mandatory[0].Name)
}

func TestAnalyze_OneActionInFlight(t *testing.T) {
	ex := &fakeExtractor{
		set:     butterChickenSet(),
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	ad := &fakeAdapter{}
	svc, id := newTestService(ex, ad, defaultOptions())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.Analyze(context.Background(), id, "Butter Chicken", 2)
		assert.NoError(t, err)
	}()

	<-ex.started
	_, err := svc.GenerateRecipe(context.Background(), id)
	assert.ErrorIs(t, err, common.ErrRequestInFlight)
	assert.Equal(t, 0, ad.calls)

	close(ex.block)
	wg.Wait()
}

func TestAnalyze_IgnoresCancelledContext(t *testing.T) {
	ex := &fakeExtractor{set: butterChickenSet()}
	svc, id := newTestService(ex, &fakeAdapter{}, defaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, id, "Butter Chicken", 2)
	require.NoError(t, err)
}

func TestExport(t *testing.T) {
	ad := &fakeAdapter{recipe: &recipe.Recipe{
		Mode:         recipe.OutputStructured,
		StrategyNote: "Use cashew paste for the cream.",
		Ingredients:  []string{"Chicken", "Cashew paste"},
		Steps:        []string{"Cook."},
	}}
	svc, id := newTestService(&fakeExtractor{set: butterChickenSet()}, ad, defaultOptions())
	ctx := context.Background()

	_, err := svc.Analyze(ctx, id, "Butter Chicken", 2)
	require.NoError(t, err)
	_, err = svc.Toggle(id, "Cream", false)
	require.NoError(t, err)
	_, err = svc.GenerateRecipe(ctx, id)
	require.NoError(t, err)

	out, err := svc.Export(id)
	require.NoError(t, err)
	assert.Contains(t, out, "# Butter Chicken")
	assert.Contains(t, out, "Use cashew paste for the cream.")
	assert.Contains(t, out, "- Cream")
	assert.Contains(t, out, "1. Cook.")
}
