package toolsurface

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rcourtman/reprod-probe/internal/planner/execplan"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// TestRecipeGenerateNaturalReadyQueryParam exercises §8 scenario 1: a
// query-param candidate resolved from a direct controller call.
func TestRecipeGenerateNaturalReadyQueryParam(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "CatalogSpecs.java", `
package com.example.catalog;

public class CatalogSpecs {
    public List<Item> finalPriceLte(String keyword) {
        return null;
    }
}
`)
	writeFile(t, dir, "CatalogController.java", `
package com.example.catalog;

@RestController
@RequestMapping("/catalog")
public class CatalogController {

    @GetMapping("/items")
    public List<Item> list(@RequestParam("keyword") String keyword) {
        return specs.finalPriceLte(keyword);
    }
}
`)

	exec := &Executor{Logger: zerolog.Nop()}
	result, err := exec.RecipeGenerate(RecipeGenerateRequest{
		ClassHint:   "CatalogSpecs",
		MethodHint:  "finalPriceLte",
		ProjectRoot: dir,
	})
	require.NoError(t, err)
	require.Equal(t, execplan.ModeNatural, result.ExecutionPlan.Mode)
	require.Len(t, result.RequestCandidates, 1)
	require.Equal(t, "GET", result.RequestCandidates[0].Method)
	require.Contains(t, result.RequestCandidates[0].FullURLHint, "/catalog/items?keyword=value")
	require.GreaterOrEqual(t, len(result.ExecutionPlan.NaturalSteps), 3)
}

// TestRecipeGenerateActuatedFallback exercises §8 scenario 2: the same
// target with no controller anywhere in the tree falls back to actuated
// mode with exactly prepare/verify/cleanup phases.
func TestRecipeGenerateActuatedFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "OrderService.java", `
package demo;

public class OrderService {
    public boolean isEligibleForDiscount(int amount) {
        return amount > 0;
    }
}
`)

	exec := &Executor{Logger: zerolog.Nop()}
	result, err := exec.RecipeGenerate(RecipeGenerateRequest{
		ClassHint:   "OrderService",
		MethodHint:  "isEligibleForDiscount",
		ProjectRoot: dir,
	})
	require.NoError(t, err)
	require.Empty(t, result.RequestCandidates)
	require.Equal(t, execplan.ModeActuated, result.ExecutionPlan.Mode)
	require.Len(t, result.ExecutionPlan.ActuatedSteps, 3)
	require.Contains(t, result.ExecutionPlan.ModeReason, "actuat")
}

// TestRecipeGenerateGuardrailOnUnrelatedMatch exercises §8 scenario 4: an
// index containing only an unrelated method must not produce a candidate
// from a line-only match across unrelated classes.
func TestRecipeGenerateGuardrailOnUnrelatedMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "UnrelatedRepository.java", `
package demo.repo;

public class UnrelatedRepository {
    public void notTheMethod() {
    }
}
`)

	exec := &Executor{Logger: zerolog.Nop()}
	lineHint := 41
	result, err := exec.RecipeGenerate(RecipeGenerateRequest{
		ClassHint:   "DynamoDbAccountSettingsRepository",
		MethodHint:  "putSettingsJson",
		LineHint:    &lineHint,
		ProjectRoot: dir,
	})
	require.NoError(t, err)
	require.Equal(t, StatusTargetNotInferred, result.Status)
	require.Nil(t, result.Target)
}

func TestDebugPingReportsOK(t *testing.T) {
	exec := &Executor{Logger: zerolog.Nop()}
	result := exec.DebugPing()
	require.True(t, result.OK)
	require.Equal(t, "pong", result.Message)
}
