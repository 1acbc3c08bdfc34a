package recipe

import (
	"context"
	"errors"
	"testing"
	"time"

	"chefos/internal/core/ai/cache"
	"chefos/internal/core/ai/provider"
	"chefos/internal/infrastructure/config"
	"chefos/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator 依序回傳預設回覆並記錄呼叫
type fakeGenerator struct {
	replies []string
	err     error
	prompts []string
	formats []provider.Format
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, format provider.Format) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.formats = append(f.formats, format)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no reply configured")
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func (f *fakeGenerator) calls() int { return len(f.prompts) }

const butterChickenReply = `{"heroes":["Chicken","Butter","Tomato"],"variables":["Cream","Ghee"],"pantry":["Oil","Salt"]}`

func classic(t *testing.T) PromptVariant {
	t.Helper()
	v, ok := LookupVariant("classic")
	require.True(t, ok)
	return v
}

func butterChicken() DishQuery {
	return DishQuery{Name: "Butter Chicken", Servings: 2}
}

func TestExtract_ButterChicken(t *testing.T) {
	gen := &fakeGenerator{replies: []string{butterChickenReply}}
	e := NewExtractor(gen, nil, classic(t))

	set, err := e.Extract(context.Background(), butterChicken())
	require.NoError(t, err)

	assert.Equal(t, []string{"Chicken", "Butter", "Tomato"}, set.Mandatory)
	assert.Equal(t, []string{"Cream", "Ghee"}, set.Substitutable)
	assert.Equal(t, []string{"Oil", "Salt"}, set.Staple)

	require.Equal(t, 1, gen.calls())
	assert.Equal(t, provider.FormatJSON, gen.formats[0])
	assert.Contains(t, gen.prompts[0], "Butter Chicken")
	assert.Contains(t, gen.prompts[0], `"heroes"`)
}

func TestExtract_FencedReplyMatchesBare(t *testing.T) {
	bare, err := NewExtractor(&fakeGenerator{replies: []string{butterChickenReply}}, nil, classic(t)).
		Extract(context.Background(), butterChicken())
	require.NoError(t, err)

	fenced, err := NewExtractor(&fakeGenerator{replies: []string{"```json\n" + butterChickenReply + "\n```"}}, nil, classic(t)).
		Extract(context.Background(), butterChicken())
	require.NoError(t, err)

	assert.Equal(t, bare, fenced)
}

func TestExtract_NoBracesIsUnparsable(t *testing.T) {
	reply := "Butter chicken needs chicken, butter and tomatoes."
	gen := &fakeGenerator{replies: []string{reply}}
	_, err := NewExtractor(gen, nil, classic(t)).Extract(context.Background(), butterChicken())

	assert.ErrorIs(t, err, common.ErrUnparsableResponse)
	var ue *UnparsableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, StageExtract, ue.Stage)
	assert.Equal(t, reply, ue.Raw)
}

func TestExtract_ConnectionError(t *testing.T) {
	gen := &fakeGenerator{err: common.WrapError(common.ErrConnection, errors.New("dial tcp: refused"))}
	_, err := NewExtractor(gen, nil, classic(t)).Extract(context.Background(), butterChicken())

	assert.ErrorIs(t, err, common.ErrConnection)
	assert.NotErrorIs(t, err, common.ErrUnparsableResponse)
}

func TestExtract_NoneMandatoryIsEmpty(t *testing.T) {
	gen := &fakeGenerator{replies: []string{`{"heroes":["none"],"variables":["Cream"],"pantry":["Salt"]}`}}
	set, err := NewExtractor(gen, nil, classic(t)).Extract(context.Background(), butterChicken())

	require.NoError(t, err)
	assert.Empty(t, set.Mandatory)
	assert.Equal(t, []string{"Cream"}, set.Substitutable)
}

func TestExtract_CachesOnlySuccessfulReplies(t *testing.T) {
	store := cache.NewManager(config.CacheConfig{Enabled: true, MaxSize: 10, TTL: time.Hour})
	t.Cleanup(func() { _ = store.Close() })

	gen := &fakeGenerator{replies: []string{"sorry, no idea", butterChickenReply}}
	e := NewExtractor(gen, store, classic(t))
	ctx := context.Background()

	_, err := e.Extract(ctx, butterChicken())
	assert.ErrorIs(t, err, common.ErrUnparsableResponse)

	first, err := e.Extract(ctx, butterChicken())
	require.NoError(t, err)

	second, err := e.Extract(ctx, DishQuery{Name: "  butter   CHICKEN ", Servings: 4})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, gen.calls())
}

func TestMapCategories_Synonyms(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"classic", `{"heroes":["Paneer"],"variables":["Cream"],"pantry":["Salt"]}`},
		{"chef", `{"must_haves":["Paneer"],"soul":["Cream"],"foundation":["Salt"]}`},
		{"kitchen", `{"core":["Paneer"],"character":["Cream"],"staple":["Salt"]}`},
		{"mixed case and spacing", `{"Must Haves":["Paneer"],"Soul":["Cream"],"PANTRY-ITEMS":["Salt"]}`},
		{"hyphenated", `{"must-have":["Paneer"],"flavour":["Cream"],"basics":["Salt"]}`},
		{"camel case", `{"mustHaves":["Paneer"],"soul":["Cream"],"pantryItems":["Salt"]}`},
		{"pascal case", `{"MustHaves":["Paneer"],"Soul":["Cream"],"Foundation":["Salt"]}`},
		{"placeholder with punctuation", `{"heroes":["Paneer","None."],"variables":["Cream","N/A!"],"pantry":["Salt"]}`},
	}

	want := &IngredientSet{
		Mandatory:     []string{"Paneer"},
		Substitutable: []string{"Cream"},
		Staple:        []string{"Salt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, _, err := ParseIngredients(tt.json)
			require.NoError(t, err)
			assert.Equal(t, want, set)
		})
	}
}

func TestMapCategories_PositionalFallback(t *testing.T) {
	set, _, err := ParseIngredients(`{"dish":"Pad Thai","proteins":["Shrimp","Tofu"],"sauce":["Tamarind","Fish sauce"],"basics":["Oil"]}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Shrimp", "Tofu"}, set.Mandatory)
	assert.Equal(t, []string{"Tamarind", "Fish sauce"}, set.Substitutable)
	assert.Equal(t, []string{"Oil"}, set.Staple)
}

func TestMapCategories_FallbackNeedsTwoLists(t *testing.T) {
	set, _, err := ParseIngredients(`{"items":["Shrimp","Tofu"],"pantry":["Oil","Salt"]}`)
	require.NoError(t, err)

	assert.Empty(t, set.Mandatory)
	assert.Empty(t, set.Substitutable)
	assert.Equal(t, []string{"Oil", "Salt"}, set.Staple)
}

func TestMapCategories_NestedAndScalars(t *testing.T) {
	set, _, err := ParseIngredients(`{
		"heroes": [["Chicken", "Butter"], {"veg": "Tomato", "qty": 400}],
		"variables": ["- Cream", "**Ghee**", "1. Kasuri methi", null, "n/a", "ok"],
		"pantry": {"fat": "Oil", "seasoning": ["Salt", "  "]}
	}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Chicken", "Butter", "Tomato", "400"}, set.Mandatory)
	assert.Equal(t, []string{"Cream", "Ghee", "Kasuri methi"}, set.Substitutable)
	assert.Equal(t, []string{"Oil", "Salt"}, set.Staple)
}

func TestMapCategories_WrappedObject(t *testing.T) {
	set, _, err := ParseIngredients(`{"ingredients":{"core":["Rice"],"character":["Saffron"],"staple":["Water"]}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rice"}, set.Mandatory)
	assert.Equal(t, []string{"Saffron"}, set.Substitutable)
}

func TestMapCategories_WrappedBesideOtherFields(t *testing.T) {
	set, _, err := ParseIngredients(`{"dish":"Paella","servings":4,"ingredients":{"heroes":["Rice","Saffron"],"variables":["Chorizo"],"pantry":["Oil"]}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rice", "Saffron"}, set.Mandatory)
	assert.Equal(t, []string{"Chorizo"}, set.Substitutable)
	assert.Equal(t, []string{"Oil"}, set.Staple)
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"mustHaves":    "must_haves",
		"MustHaves":    "must_haves",
		"pantryItems":  "pantry_items",
		"PANTRY-ITEMS": "pantry_items",
		" Must Haves ": "must_haves",
		"must__have":   "must_have",
		"prepTime":     "prep_time",
		"heroes":       "heroes",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeKey(in), in)
	}
}
