package recipes_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdgusya/crawl-selector/cmd/recipes"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/transform"
)

const page = `<html><body>
<h1 class="title">Alpha</h1><span class="price">$1,299.00</span>
</body></html>`

func writeRecipe(t *testing.T, fields ...recipe.SelectorField) string {
	t.Helper()
	data, err := recipe.Export(recipe.CrawlRecipe{Name: "Product", URLPattern: "https://shop.example/*", Fields: fields})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "product.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	cmd := recipes.Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRecipeTest_AllFieldsPass(t *testing.T) {
	srv := pageServer(t)
	path := writeRecipe(t,
		recipe.SelectorField{FieldName: "title", Selector: "h1.title", Extract: recipe.Text()},
		recipe.SelectorField{
			FieldName:  "price",
			Selector:   ".price",
			Extract:    recipe.Text(),
			Transforms: []transform.Step{transform.ExtractNumber()},
		},
	)

	out, err := run(t, "test", path, srv.URL+"/a", srv.URL+"/b")

	require.NoError(t, err, out)
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "1299.00")
	assert.Contains(t, out, "/b")
}

func TestRecipeTest_ReportsFailures(t *testing.T) {
	srv := pageServer(t)
	path := writeRecipe(t, recipe.SelectorField{FieldName: "sku", Selector: ".sku", Extract: recipe.Text()})

	out, err := run(t, "test", path, srv.URL, "http://127.0.0.1:1/")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "some fields failed: 2")
	assert.Contains(t, out, "sku")
}

func TestRecipeTest_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"9.9"}`), 0o600))

	_, err := run(t, "test", path, "https://shop.example/")

	require.ErrorIs(t, err, recipe.ErrUnsupportedVersion)
}

func TestRecipeList_EmptyStore(t *testing.T) {
	out, err := run(t, "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No recipes stored")
}

func TestRecipeImport(t *testing.T) {
	path := writeRecipe(t, recipe.SelectorField{FieldName: "title", Selector: "h1", Extract: recipe.Text()})

	out, err := run(t, "import", path, "--activate")

	require.NoError(t, err)
	assert.Contains(t, out, `Imported "Product"`)
	assert.Contains(t, out, "(1 fields)")
}
