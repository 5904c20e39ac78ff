package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsharvest/internal/config"
	"newsharvest/internal/domain"
	"newsharvest/internal/sources"
)

func testApp() *Application {
	return &Application{
		cfg: config.Config{
			Sources: []config.SourceConfig{
				{Name: domain.SourceMoneyControl, Categories: []string{"business", "markets"}},
				{Name: domain.SourceLiveMint, Categories: []string{"latest"}},
				{Name: domain.SourceCNBC, Categories: []string{"markets"}, Planned: true},
			},
		},
	}
}

func TestExpandScopeAll(t *testing.T) {
	t.Parallel()

	scope, err := testApp().ExpandScope(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.ScopeItem{
		{Source: domain.SourceMoneyControl, Category: "business"},
		{Source: domain.SourceMoneyControl, Category: "markets"},
		{Source: domain.SourceLiveMint, Category: "latest"},
		{Source: domain.SourceCNBC, Category: "markets"},
	}, scope)
}

func TestExpandScopeAllKeyword(t *testing.T) {
	t.Parallel()

	scope, err := testApp().ExpandScope([]string{"all"}, []string{"all"})
	require.NoError(t, err)
	assert.Len(t, scope, 4)
}

func TestExpandScopeSelectedSourceAndCategories(t *testing.T) {
	t.Parallel()

	scope, err := testApp().ExpandScope([]string{"moneycontrol"}, []string{"markets"})
	require.NoError(t, err)
	assert.Equal(t, []domain.ScopeItem{
		{Source: domain.SourceMoneyControl, Category: "markets"},
	}, scope)
}

func TestExpandScopeUnknownSource(t *testing.T) {
	t.Parallel()

	_, err := testApp().ExpandScope([]string{"reuters"}, nil)
	assert.Error(t, err)
}

func TestExpandScopeSourceWithoutCategories(t *testing.T) {
	t.Parallel()

	application := &Application{cfg: config.Config{
		Sources: []config.SourceConfig{{Name: domain.SourceLiveMint}},
	}}

	_, err := application.ExpandScope([]string{"livemint"}, nil)
	assert.Error(t, err)

	scope, err := application.ExpandScope([]string{"livemint"}, []string{"latest"})
	require.NoError(t, err)
	assert.Len(t, scope, 1)
}

func TestBuildRegistryRegistersAllConfiguredSources(t *testing.T) {
	t.Parallel()

	registry := buildRegistry(testApp().cfg)

	for _, name := range []domain.Source{domain.SourceMoneyControl, domain.SourceLiveMint, domain.SourceCNBC} {
		adapter, err := registry.Resolve(name)
		require.NoError(t, err)
		assert.Equal(t, name, adapter.Name())
	}

	// Planned sources resolve to the explicit not-implemented adapter.
	adapter, err := registry.Resolve(domain.SourceCNBC)
	require.NoError(t, err)
	_, err = adapter.ListCandidates(t.Context(), nil, "markets", 1)
	assert.ErrorIs(t, err, sources.ErrNotImplemented)
}
