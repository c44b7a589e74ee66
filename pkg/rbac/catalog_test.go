package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogDescribe(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		lang Language
		key  PermissionKey
		want string
	}{
		{English, "inventory.create", "create inventory items"},
		{Spanish, "inventory.create", "crear artículos de inventario"},
		{English, "dashboard.view_financial_stats", "view financial statistics"},
		{Spanish, "dashboard.view_salaries", "ver la nómina en el panel"},
		{English, "spaceships.launch", "spaceships.launch"},
		{English, "customers.launch", "customers.launch"},
		{English, "nodot", "nodot"},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang)+"/"+string(tt.key), func(t *testing.T) {
			assert.Equal(t, tt.want, c.Describe(tt.lang, tt.key))
		})
	}
}

func TestCatalogMessage(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t,
		"You do not have permission to create expenses (expenses.create)",
		c.Message(English, "expenses.create"))
	assert.Equal(t,
		"No tienes permiso para eliminar clientes (customers.delete)",
		c.Message(Spanish, "customers.delete"))
}

func TestEveryKnownPermissionHasDescription(t *testing.T) {
	c := DefaultCatalog()
	for _, key := range AllPermissions() {
		assert.NotEqual(t, string(key), c.Describe(English, key), "missing English text for %s", key)
		assert.NotEqual(t, string(key), c.Describe(Spanish, key), "missing Spanish text for %s", key)
	}
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	_, err := LoadCatalog([]byte("messages: [unterminated"))
	assert.Error(t, err)

	_, err = LoadCatalog([]byte("resources: {}"))
	assert.Error(t, err)

	c, err := LoadCatalog([]byte(`messages: {en: "denied %s (%s)"}`))
	require.NoError(t, err)
	assert.Equal(t, "denied x.y (x.y)", c.Message(Spanish, "x.y"))
}

func TestLanguageFromRequest(t *testing.T) {
	tests := map[string]Language{
		"":                        English,
		"es-MX,es;q=0.9,en;q=0.8": Spanish,
		"en-US,en;q=0.9":          English,
		"fr-FR, es;q=0.5":         Spanish,
		"de":                      English,
	}

	for header, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Accept-Language", header)
		}
		assert.Equal(t, want, LanguageFromRequest(r), header)
	}
}
