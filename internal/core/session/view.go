package session

import "chefos/internal/core/recipe"

// Item 一項食材與其勾選狀態
type Item struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Categories 依分類列出的食材
type Categories struct {
	Mandatory     []Item `json:"mandatory"`
	Substitutable []Item `json:"substitutable"`
	Staple        []Item `json:"staple"`
}

// View 會話的對外呈現
type View struct {
	ID               string            `json:"session_id"`
	Query            *recipe.DishQuery `json:"query,omitempty"`
	Ingredients      *Categories       `json:"ingredients,omitempty"`
	Blocked          bool              `json:"blocked"`
	CanGenerate      bool              `json:"can_generate"`
	EmptyMandatory   bool              `json:"empty_mandatory"`
	MissingMandatory []string          `json:"missing_mandatory,omitempty"`
	MissingExtras    []string          `json:"missing_extras,omitempty"`
	Recipe           *recipe.Recipe    `json:"recipe,omitempty"`
}

func newView(id string, st state) *View {
	v := &View{
		ID:     id,
		Query:  st.query,
		Recipe: st.recipe,
	}
	if st.ingredients == nil {
		return v
	}

	v.Ingredients = &Categories{
		Mandatory:     items(st.ingredients.Mandatory, st.review),
		Substitutable: items(st.ingredients.Substitutable, st.review),
		Staple:        items(st.ingredients.Staple, st.review),
	}

	p := recipe.NewPartition(st.ingredients, st.review)
	v.Blocked = p.Blocked()
	v.CanGenerate = p.Ready()
	v.EmptyMandatory = p.MandatoryCount == 0
	v.MissingMandatory = p.MissingMandatory
	v.MissingExtras = p.MissingExtras
	return v
}

func items(names []string, review recipe.ReviewState) []Item {
	out := make([]Item, 0, len(names))
	for _, name := range names {
		out = append(out, Item{Name: name, Available: review.Available(name)})
	}
	return out
}
