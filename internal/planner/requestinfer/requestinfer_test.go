package requestinfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rcourtman/reprod-probe/internal/planner/openapi"
	"github.com/rcourtman/reprod-probe/internal/planner/sourceindex"
	"github.com/rcourtman/reprod-probe/internal/planner/targetinfer"
	"github.com/stretchr/testify/require"
)

const productControllerSource = `
package com.example.catalog;

@RestController
@RequestMapping("/products")
public class ProductController {

    @GetMapping("/search")
    public List<Product> search(@RequestParam(required = false) Double minPrice,
                                 @RequestParam(required = false) Double maxPrice,
                                 @RequestParam(defaultValue = "0") int page,
                                 @RequestParam(defaultValue = "20") int size) {
        if (minPrice != null) {
            return catalogService.finalPriceLte(minPrice, page, size);
        } else if (maxPrice != null) {
            return catalogService.finalPriceGte(maxPrice, page, size);
        }
        return catalogService.all(page, size);
    }
}
`

const accountControllerSource = `
package com.example.accounts;

@RestController
public class AccountSettingsController {

    @PatchMapping("/user-accounts/settings")
    public Settings update(@RequestBody SettingsRequest body) {
        return settingsService.updateAccountSettings(body);
    }
}
`

func target(method string) targetinfer.Target {
	return targetinfer.Target{Method: method}
}

func TestInfersQueryParamCandidateFromDirectControllerCall(t *testing.T) {
	files := []ControllerFile{{Path: "ProductController.java", Text: productControllerSource}}
	cand, ok := Infer(target("finalPriceLte"), files, nil, openapi.Document{}, false)
	require.True(t, ok)
	require.Equal(t, "GET", cand.Method)
	require.Equal(t, "/products/search", cand.Path)
	require.Contains(t, cand.QueryTemplate, "minPrice=1000")
}

func TestMinPriceOmittedWhenMaxPriceElseIfGuardPresent(t *testing.T) {
	files := []ControllerFile{{Path: "ProductController.java", Text: productControllerSource}}
	cand, ok := Infer(target("finalPriceGte"), files, nil, openapi.Document{}, false)
	require.True(t, ok)
	require.NotContains(t, cand.QueryTemplate, "minPrice")
	require.Contains(t, cand.QueryTemplate, "maxPrice=1000")
}

func TestCrossModulePatchResolvedFromControllerBody(t *testing.T) {
	files := []ControllerFile{{Path: "AccountSettingsController.java", Text: accountControllerSource}}
	cand, ok := Infer(target("updateAccountSettings"), files, nil, openapi.Document{}, false)
	require.True(t, ok)
	require.Equal(t, "PATCH", cand.Method)
	require.Equal(t, "/user-accounts/settings", cand.Path)
	require.NotNil(t, cand.BodyTemplate)
}

func TestFallsBackToOpenAPIWhenNoControllerCallsTarget(t *testing.T) {
	doc, _, ok := openapi.Find(writeOpenAPIDoc(t))
	require.True(t, ok)
	cand, found := Infer(target("updateAccountSettings"), nil, nil, doc, true)
	require.True(t, found)
	require.Equal(t, "PATCH", cand.Method)
	require.Equal(t, "/user-accounts/settings", cand.Path)
}

func TestNoRouteWhenNothingResolves(t *testing.T) {
	_, ok := Infer(target("someUnknownMethod"), nil, nil, openapi.Document{}, false)
	require.False(t, ok)
}

func TestControllerFilesCappedAtMax(t *testing.T) {
	var files []ControllerFile
	for i := 0; i < maxControllerFiles+10; i++ {
		files = append(files, ControllerFile{Path: "X.java", Text: ""})
	}
	_, ok := Infer(target("nothing"), files, nil, openapi.Document{}, false)
	require.False(t, ok)
}

func TestCallerBFSFindsServiceMethodOverController(t *testing.T) {
	idx := &sourceindex.Index{
		Files: []sourceindex.FileEntry{
			{
				Path:    "CatalogService.java",
				Package: "com.example.catalog",
				Methods: []sourceindex.Method{
					{Name: "searchProducts", Line: 10, Signature: "searchProducts(finalPriceLte(...))"},
				},
			},
		},
	}
	files := []ControllerFile{{Path: "ProductController.java", Text: `
@RequestMapping("/products")
public class ProductController {
    @GetMapping("/search")
    public List<Product> search(@RequestParam Double minPrice) {
        return catalogService.searchProducts(minPrice);
    }
}
`}}
	cand, ok := Infer(target("finalPriceLte"), files, idx, openapi.Document{}, false)
	require.True(t, ok)
	require.Equal(t, "GET", cand.Method)
}

func writeOpenAPIDoc(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	const doc = `
openapi: 3.0.0
paths:
  /user-accounts/settings:
    patch:
      operationId: updateAccountSettings
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openapi.yaml"), []byte(doc), 0o644))
	return dir
}
