package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/flows"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/pkg/ai"
)

func TestScenarioServiceGenerateAndAccess(t *testing.T) {
	repos := setupRepos(t)
	seedUser(t, repos, "edu-1", models.RoleEducator)
	seedUser(t, repos, "edu-2", models.RoleEducator)
	seedUser(t, repos, "stu-1", models.RoleStudent)
	seedUser(t, repos, "stu-2", models.RoleStudent)

	provider := ai.NewMockProvider(ai.JSON(scenarioResponse("hash maps")))
	svc := NewScenarioService(repos.scenarios, repos.assignments, repos.roster, repos.users,
		flows.NewScenarioFlow(provider, zerolog.Nop()), newValidator(), zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Generate(ctx, "edu-1", dto.ScenarioGenerateRequest{
		Theme:      "ocean",
		Concepts:   []string{"Hash Maps", "Arrays"},
		Difficulty: models.DifficultyMedium,
		Guidance:   "<script>alert(1)</script>Focus on lookups",
	})
	require.NoError(t, err)
	require.Equal(t, "Hash Maps", created.PrimaryConcept)
	require.Equal(t, "ocean", created.Theme)
	require.Len(t, created.Hints, 3)
	require.Len(t, created.TestCases, 4)
	require.Equal(t, 1, provider.CallCount())

	stored, err := repos.scenarios.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Focus on lookups", stored.Guidance)

	_, err = svc.Get(ctx, "stu-1", created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	seedRoster(t, repos, "edu-2", "stu-1")
	seedAssigned(t, repos, "edu-1", "stu-1", stored)

	for _, reader := range []string{"edu-1", "stu-1", "edu-2"} {
		got, err := svc.Get(ctx, reader, created.ID)
		require.NoError(t, err, reader)
		require.Equal(t, created.ID, got.ID)
	}

	_, err = svc.Get(ctx, "stu-2", created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, "edu-1", "missing")
	require.ErrorIs(t, err, ErrScenarioNotFound)

	items, meta, err := svc.List(ctx, "edu-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 20, meta.PageSize)
}

func TestScenarioServiceRejectsStudentsAndBadOutput(t *testing.T) {
	repos := setupRepos(t)
	seedUser(t, repos, "edu-1", models.RoleEducator)
	seedUser(t, repos, "stu-1", models.RoleStudent)

	bad := scenarioResponse("Graphs")
	provider := ai.NewMockProvider(ai.JSON(bad))
	svc := NewScenarioService(repos.scenarios, repos.assignments, repos.roster, repos.users,
		flows.NewScenarioFlow(provider, zerolog.Nop()), newValidator(), zerolog.Nop())
	ctx := context.Background()

	request := dto.ScenarioGenerateRequest{Concepts: []string{"Arrays"}, Difficulty: models.DifficultyEasy}
	_, err := svc.Generate(ctx, "stu-1", request)
	require.ErrorIs(t, err, ErrForbidden)
	require.Zero(t, provider.CallCount())

	_, err = svc.Generate(ctx, "edu-1", request)
	require.True(t, ai.IsValidationError(err), "a concept outside the request is rejected")

	var count int64
	require.NoError(t, repos.db.Model(&models.Scenario{}).Count(&count).Error)
	require.Zero(t, count)

	_, err = svc.Generate(ctx, "edu-1", dto.ScenarioGenerateRequest{Concepts: []string{"Arrays"}, Difficulty: "Impossible"})
	require.Error(t, err)
}
