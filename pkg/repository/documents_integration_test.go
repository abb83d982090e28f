package repository_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/repository"
	"github.com/specforge/specforge/test/util"
)

// seedProject creates a tenant, its owner user, and one project so
// document rows satisfy their foreign keys.
func seedProject(t *testing.T, db *sqlx.DB) (repos *repository.Repositories, tenantID, userID, projectID string) {
	t.Helper()
	ctx := t.Context()
	repos = repository.New(db)

	tenant, err := repos.Tenants.Create(ctx, "acme", "Acme Corp")
	require.NoError(t, err)

	user, err := repos.Users.Create(ctx, &models.User{
		TenantID:     tenant.ID,
		Email:        "owner@acme.test",
		Username:     "owner",
		PasswordHash: "x",
	})
	require.NoError(t, err)

	ownerRoleID, err := repos.Tenants.RoleID(ctx, tenant.ID, auth.RoleOwner)
	require.NoError(t, err)

	project, err := repos.Projects.Create(ctx, tenant.ID, user.ID, "demo", "", ownerRoleID)
	require.NoError(t, err)

	return repos, tenant.ID, user.ID, project.ID
}

func TestCreateVersionConcurrentWriters(t *testing.T) {
	db := util.SetupTestDatabase(t)
	repos, tenantID, userID, projectID := seedProject(t, db)
	ctx := t.Context()

	const writers = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		versions []int
		errs     []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := repos.Documents.CreateVersion(ctx, &models.DocumentVersion{
				TenantID:     tenantID,
				ProjectID:    projectID,
				DocumentType: models.DocumentTypeAbout,
				Title:        "About",
				Content:      "about the product",
				CreatedBy:    userID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			versions = append(versions, doc.Version)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, versions, writers)

	// The advisory lock serializes writers: exactly 1..N, no gaps, no
	// duplicates.
	sort.Ints(versions)
	for i, v := range versions {
		assert.Equal(t, i+1, v)
	}

	latest, err := repos.Documents.LatestByType(ctx, tenantID, projectID, models.DocumentTypeAbout, nil)
	require.NoError(t, err)
	assert.Equal(t, writers, latest.Version)
}

func TestCreateVersionNeverReusesSoftDeletedNumbers(t *testing.T) {
	db := util.SetupTestDatabase(t)
	repos, tenantID, userID, projectID := seedProject(t, db)
	ctx := t.Context()

	first, err := repos.Documents.CreateVersion(ctx, &models.DocumentVersion{
		TenantID:     tenantID,
		ProjectID:    projectID,
		DocumentType: models.DocumentTypeSpecs,
		Title:        "Specs",
		Content:      "v1",
		CreatedBy:    userID,
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	require.NoError(t, repos.Documents.SoftDelete(ctx, tenantID, first.ID))

	// The MAX scan includes soft-deleted rows, so the freed number stays
	// reserved and the next write continues past it.
	second, err := repos.Documents.CreateVersion(ctx, &models.DocumentVersion{
		TenantID:     tenantID,
		ProjectID:    projectID,
		DocumentType: models.DocumentTypeSpecs,
		Title:        "Specs",
		Content:      "v2",
		CreatedBy:    userID,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	latest, err := repos.Documents.LatestByType(ctx, tenantID, projectID, models.DocumentTypeSpecs, nil)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestDocumentReadsAreTenantScoped(t *testing.T) {
	db := util.SetupTestDatabase(t)
	repos, tenantID, userID, projectID := seedProject(t, db)
	ctx := t.Context()

	other, err := repos.Tenants.Create(ctx, "rival", "Rival Inc")
	require.NoError(t, err)

	doc, err := repos.Documents.CreateVersion(ctx, &models.DocumentVersion{
		TenantID:     tenantID,
		ProjectID:    projectID,
		DocumentType: models.DocumentTypeAbout,
		Title:        "About",
		Content:      "private",
		CreatedBy:    userID,
	})
	require.NoError(t, err)

	// Another tenant asking for the same id sees exactly what a missing
	// row would produce.
	_, err = repos.Documents.Get(ctx, other.ID, doc.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repos.Documents.LatestByType(ctx, other.ID, projectID, models.DocumentTypeAbout, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
