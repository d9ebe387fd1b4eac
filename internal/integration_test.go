// Cross-module workflow tests. They need a real database: set
// TEST_DATABASE_URL to run them, otherwise they skip.
package internal

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/policy"
	"github.com/linkaid/platform/internal/shared/database"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/types"
	"github.com/linkaid/platform/internal/tow"
	"github.com/linkaid/platform/internal/user"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool, nil); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	return pool
}

func testRecorder(pool *pgxpool.Pool) (*audit.Repository, *audit.Recorder) {
	repo := audit.NewRepository(pool)
	return repo, audit.NewRecorder(repo, nil, nil)
}

func testAdmin() audit.Actor {
	return audit.Actor{ID: types.NewID(), Name: "Admin One", Role: "super_admin"}
}

// newCivilian signs up a fresh profile the way the sign-up flow does.
func newCivilian(t *testing.T, repo *user.Repository) *user.Profile {
	t.Helper()

	id := types.NewID()
	tag := id.String()[:8]
	profile := &user.Profile{
		ID:       id,
		FullName: "Test Civilian " + tag,
		Username: "user_" + tag,
		Email:    tag + "@example.com",
		Role:     auth.RoleCivilian,
	}
	if err := repo.Create(context.Background(), profile, "$2a$10$notarealhashnotarealhash"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return profile
}

func errorCode(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.Code
	}
	return ""
}

func TestSignUpCreatesCivilianProfile(t *testing.T) {
	pool := testPool(t)
	_, recorder := testRecorder(pool)
	users := user.NewRepository(pool, recorder)

	created := newCivilian(t, users)

	got, err := users.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("failed to load created profile: %v", err)
	}

	if got.Role != auth.RoleCivilian {
		t.Errorf("new account should be civilian, got %s", got.Role)
	}
	if got.IsVerified {
		t.Error("new account should be unverified")
	}
	if got.CompanyID != nil {
		t.Error("new account should have no company linkage")
	}
}

func TestPolicyDeleteResetsHolder(t *testing.T) {
	ctx := context.Background()
	pool := testPool(t)
	_, recorder := testRecorder(pool)
	users := user.NewRepository(pool, recorder)
	policies := policy.NewRepository(pool, recorder)
	admin := testAdmin()

	holder := newCivilian(t, users)

	// Give the holder a company linkage and verified standing, the
	// state an active policy leaves a user in.
	companyID := types.NewID()
	if err := users.AssignRole(ctx, admin, holder.ID, auth.RoleCivilian, &companyID); err != nil {
		t.Fatalf("failed to link holder to a company: %v", err)
	}
	if err := users.SetVerified(ctx, admin, holder.ID, true); err != nil {
		t.Fatalf("failed to verify holder: %v", err)
	}

	p := &policy.Policy{
		ID:           types.NewID(),
		PolicyNumber: "RS-IT-" + types.NewID().String()[:12],
		HolderID:     holder.ID,
		Coverage:     []string{"roadside", "collision"},
	}
	if err := policies.Register(ctx, admin, p); err != nil {
		t.Fatalf("failed to register policy: %v", err)
	}

	if err := policies.Delete(ctx, admin, p.ID); err != nil {
		t.Fatalf("failed to delete policy: %v", err)
	}

	if _, err := policies.GetByID(ctx, p.ID); errorCode(err) != "NOT_FOUND" {
		t.Errorf("deleted policy should be gone, got %v", err)
	}

	got, err := users.GetByID(ctx, holder.ID)
	if err != nil {
		t.Fatalf("failed to load holder: %v", err)
	}
	if got.CompanyID != nil {
		t.Error("holder should lose company linkage with the policy")
	}
	if got.IsVerified {
		t.Error("holder should lose verified standing with the policy")
	}
}

func TestAssignTowOperatorRecordsOneEntry(t *testing.T) {
	ctx := context.Background()
	pool := testPool(t)
	auditRepo, recorder := testRecorder(pool)
	users := user.NewRepository(pool, recorder)
	admin := testAdmin()

	target := newCivilian(t, users)
	companyID := types.NewID()

	if err := users.AssignRole(ctx, admin, target.ID, auth.RoleTowOperator, &companyID); err != nil {
		t.Fatalf("failed to assign role: %v", err)
	}

	got, err := users.GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if got.Role != auth.RoleTowOperator {
		t.Errorf("expected tow_operator, got %s", got.Role)
	}
	if got.CompanyID == nil || *got.CompanyID != companyID {
		t.Error("assignment should set the company linkage")
	}

	_, total, err := auditRepo.List(ctx, audit.ListFilter{
		ResourceID: &target.ID,
		Action:     audit.ActionUserRoleAssigned,
	})
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if total != 1 {
		t.Errorf("expected exactly one role assignment entry, got %d", total)
	}
}

func TestConcurrentAppendsKeepChainLinked(t *testing.T) {
	ctx := context.Background()
	pool := testPool(t)
	auditRepo, _ := testRecorder(pool)

	const appends = 24
	var wg sync.WaitGroup
	errs := make(chan error, appends)

	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resourceID := types.NewID()
			entry := audit.NewEntry(testAdmin(), audit.ActionUserVerified,
				fmt.Sprintf("concurrent append %d", i),
				"user", &resourceID, nil)
			errs <- auditRepo.Append(ctx, entry)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	// Every append must link to the one actually committed before it,
	// no matter how the writers interleaved.
	result, err := auditRepo.VerifyChain(ctx, appends*4)
	if err != nil {
		t.Fatalf("chain verification failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("chain broken at sequence %v after concurrent appends", result.BrokenAt)
	}
}

func TestCancelUnknownTowRequest(t *testing.T) {
	pool := testPool(t)
	_, recorder := testRecorder(pool)
	tows := tow.NewRepository(pool, recorder)

	err := tows.Cancel(context.Background(), testAdmin(), types.NewID(), "")
	if errorCode(err) != "NOT_FOUND" {
		t.Errorf("cancelling a nonexistent request should be NOT_FOUND, got %v", err)
	}
}
