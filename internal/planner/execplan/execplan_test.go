package execplan

import (
	"testing"

	"github.com/rcourtman/reprod-probe/internal/planner/authresolve"
	"github.com/rcourtman/reprod-probe/internal/planner/requestinfer"
	"github.com/stretchr/testify/require"
)

func TestNaturalModeWithCandidateEmitsThreePlusSteps(t *testing.T) {
	plan := Build(Input{
		TargetKey:    "com.example.CatalogSpecs#finalPriceLte:41",
		HasCandidate: true,
		Candidate: requestinfer.Candidate{
			Method:      "GET",
			Path:        "/catalog/items",
			FullURLHint: "/catalog/items?keyword=value",
		},
		Auth: authresolve.Result{Status: authresolve.StatusNotRequired},
	})

	require.Equal(t, ModeNatural, plan.Mode)
	require.GreaterOrEqual(t, len(plan.NaturalSteps), 3)
	require.Empty(t, plan.ActuatedSteps)

	var foundExecute bool
	for _, s := range plan.NaturalSteps {
		if s.Title == "execute natural request" {
			foundExecute = true
			require.Contains(t, s.Instruction, "GET /catalog/items?keyword=value")
		}
	}
	require.True(t, foundExecute)
}

func TestActuatedFallbackWhenNoCandidate(t *testing.T) {
	plan := Build(Input{
		TargetKey:    "demo.OrderService#isEligibleForDiscount:42",
		HasCandidate: false,
		Auth:         authresolve.Result{Status: authresolve.StatusNotRequired},
	})

	require.Equal(t, ModeActuated, plan.Mode)
	require.Empty(t, plan.NaturalSteps)
	require.Len(t, plan.ActuatedSteps, 3)
	require.Equal(t, []Phase{PhasePrepare, PhaseVerify, PhaseCleanup}, []Phase{
		plan.ActuatedSteps[0].Phase, plan.ActuatedSteps[1].Phase, plan.ActuatedSteps[2].Phase,
	})
	require.Contains(t, plan.ModeReason, "actuation")
}

func TestActuatedBlockedWithoutTargetKey(t *testing.T) {
	plan := Build(Input{
		RequestedMode: ModeActuated,
		TargetKey:     "",
	})

	require.Equal(t, ModeActuated, plan.Mode)
	require.Empty(t, plan.ActuatedSteps)
	require.Contains(t, plan.ModeReason, "requires an inferred target key")
}

func TestNaturalModeForcedWithoutCandidateReportsLimitation(t *testing.T) {
	plan := Build(Input{
		RequestedMode: ModeNatural,
		TargetKey:     "demo.OrderService#isEligibleForDiscount",
		HasCandidate:  false,
		Auth:          authresolve.Result{Status: authresolve.StatusNotRequired},
	})

	require.Equal(t, ModeNatural, plan.Mode)
	require.Len(t, plan.NaturalSteps, 2)
	require.Equal(t, PhaseVerify, plan.NaturalSteps[1].Phase)
	require.Contains(t, plan.NaturalSteps[1].Instruction, "actuated mode explicitly")
}

func TestAuthPendingInsertsResolveAuthStepFirst(t *testing.T) {
	plan := Build(Input{
		TargetKey:    "com.example.Accounts#putSettingsJson:10",
		HasCandidate: true,
		Candidate:    requestinfer.Candidate{Method: "PATCH", Path: "/user-accounts/settings", FullURLHint: "/user-accounts/settings?userId=value"},
		Auth: authresolve.Result{
			Status:   authresolve.StatusNeedsUserInput,
			Strategy: authresolve.StrategyBearer,
			Missing:  []string{"authToken"},
		},
	})

	require.Equal(t, ModeNatural, plan.Mode)
	require.Equal(t, "resolve-auth", plan.NaturalSteps[0].Title)
}

func TestActuatedPrepareStepEncodesForceTaken(t *testing.T) {
	plan := Build(Input{
		RequestedMode: ModeActuated,
		TargetKey:     "c.C#m:10",
		ForceTaken:    true,
	})
	require.Contains(t, plan.ActuatedSteps[0].Instruction, "returnBoolean:true")
	require.Contains(t, plan.ActuatedSteps[0].Instruction, "recipe_generate_fallback")
}
