package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
)

type fakeTeamStore struct {
	slugs       map[string]bool
	hideSlugs   bool
	alwaysTaken bool
	createErr   error
	attempts    []string
	added       []models.Membership
	addErr      error
	memberships map[string]models.Membership
	teams       map[string]models.Team
}

func newFakeTeamStore() *fakeTeamStore {
	return &fakeTeamStore{
		slugs:       map[string]bool{},
		memberships: map[string]models.Membership{},
		teams:       map[string]models.Team{},
	}
}

func (f *fakeTeamStore) SlugExists(_ context.Context, slug string) (bool, error) {
	if f.hideSlugs {
		return false, nil
	}
	return f.slugs[slug], nil
}

func (f *fakeTeamStore) CreateTeamWithOwner(_ context.Context, team models.Team, _ models.User) error {
	f.attempts = append(f.attempts, team.Slug)
	if f.createErr != nil {
		return f.createErr
	}
	if f.alwaysTaken || f.slugs[team.Slug] {
		return apperrors.ErrSlugTaken
	}
	f.slugs[team.Slug] = true
	return nil
}

func (f *fakeTeamStore) AddMember(_ context.Context, m models.Membership) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, m)
	return nil
}

func (f *fakeTeamStore) GetMembershipByUser(_ context.Context, userID string) (*models.Membership, error) {
	m, ok := f.memberships[userID]
	if !ok {
		return nil, apperrors.ErrNotTeamMember
	}
	return &m, nil
}

func (f *fakeTeamStore) GetTeamWithMembers(_ context.Context, teamID string) (*models.Team, error) {
	team, ok := f.teams[teamID]
	if !ok {
		return nil, apperrors.ErrTeamNotFound
	}
	return &team, nil
}

func newTeamService(store *fakeTeamStore) *TeamService {
	return NewTeamService(discardLogger(), store).WithClock(func() time.Time { return fixedNow })
}

func TestCreateTeamWithOwnerDistinctSlugs(t *testing.T) {
	store := newFakeTeamStore()
	svc := newTeamService(store)
	ctx := context.Background()

	first, err := svc.CreateTeamWithOwner(ctx, models.User{ID: "u1"}, "Acme Corp")
	if err != nil {
		t.Fatalf("first team: %v", err)
	}
	second, err := svc.CreateTeamWithOwner(ctx, models.User{ID: "u2"}, "Acme Corp")
	if err != nil {
		t.Fatalf("second team: %v", err)
	}

	if first.Slug != "acme-corp" {
		t.Fatalf("first slug = %q", first.Slug)
	}
	if second.Slug == first.Slug || !strings.HasPrefix(second.Slug, "acme-corp-") {
		t.Fatalf("second slug = %q", second.Slug)
	}
	if len(first.Members) != 1 || first.Members[0].Role != models.RoleOwner {
		t.Fatalf("owner not assigned: %+v", first.Members)
	}
}

func TestCreateTeamWithOwnerRetriesOnInsertCollision(t *testing.T) {
	store := newFakeTeamStore()
	store.slugs["acme-corp"] = true
	store.hideSlugs = true
	svc := newTeamService(store)

	team, err := svc.CreateTeamWithOwner(context.Background(), models.User{ID: "u1"}, "Acme Corp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %v", store.attempts)
	}
	if team.Slug == "acme-corp" {
		t.Fatalf("expected suffixed slug")
	}
}

func TestCreateTeamWithOwnerGivesUp(t *testing.T) {
	store := newFakeTeamStore()
	store.alwaysTaken = true
	svc := newTeamService(store)

	_, err := svc.CreateTeamWithOwner(context.Background(), models.User{ID: "u1"}, "Acme Corp")
	if !errors.Is(err, apperrors.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
	if len(store.attempts) != maxSlugAttempts {
		t.Fatalf("expected %d attempts, got %d", maxSlugAttempts, len(store.attempts))
	}
}

func TestCreateTeamWithOwnerErrors(t *testing.T) {
	t.Run("blank name", func(t *testing.T) {
		store := newFakeTeamStore()
		_, err := newTeamService(store).CreateTeamWithOwner(context.Background(), models.User{ID: "u1"}, "   ")
		var inputErr *apperrors.InputError
		if !errors.As(err, &inputErr) || inputErr.Message != "Team name is required when creating a new team" {
			t.Fatalf("unexpected error %v", err)
		}
		if len(store.attempts) != 0 {
			t.Fatalf("nothing may be created")
		}
	})

	t.Run("duplicate account is not retried", func(t *testing.T) {
		store := newFakeTeamStore()
		store.createErr = apperrors.ErrDuplicateAccount
		_, err := newTeamService(store).CreateTeamWithOwner(context.Background(), models.User{ID: "u1"}, "Acme Corp")
		if !errors.Is(err, apperrors.ErrDuplicateAccount) {
			t.Fatalf("expected ErrDuplicateAccount, got %v", err)
		}
		if len(store.attempts) != 1 {
			t.Fatalf("expected a single attempt, got %d", len(store.attempts))
		}
	})
}

func TestAddMember(t *testing.T) {
	store := newFakeTeamStore()
	svc := newTeamService(store)
	ctx := context.Background()

	m, err := svc.AddMember(ctx, "team-1", "u1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Role != models.RoleMember || !m.JoinedAt.Equal(fixedNow) {
		t.Fatalf("unexpected membership %+v", m)
	}

	if _, err := svc.AddMember(ctx, "team-1", "u2", models.RoleOwner); !errors.Is(err, apperrors.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	store.addErr = apperrors.ErrTeamFull
	if _, err := svc.AddMember(ctx, "team-1", "u3", models.RoleAdmin); !errors.Is(err, apperrors.ErrTeamFull) {
		t.Fatalf("expected ErrTeamFull, got %v", err)
	}
	if len(store.added) != 1 {
		t.Fatalf("expected 1 stored membership, got %d", len(store.added))
	}
}

func TestGetTeamOverview(t *testing.T) {
	store := newFakeTeamStore()
	store.memberships["owner"] = models.Membership{TeamID: "team-1", UserID: "owner", Role: models.RoleOwner}
	store.memberships["member"] = models.Membership{TeamID: "team-1", UserID: "member", Role: models.RoleMember}
	store.teams["team-1"] = models.Team{
		ID:   "team-1",
		Name: "Acme Corp",
		Members: []models.Member{
			{UserID: "owner", Role: models.RoleOwner},
			{UserID: "member", Role: models.RoleMember},
		},
	}
	svc := newTeamService(store)
	ctx := context.Background()

	overview, err := svc.GetTeamOverview(ctx, models.Principal{UserID: "owner"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overview.SpotsLeft != 8 || !overview.CanInvite || overview.Team.Name != "Acme Corp" {
		t.Fatalf("unexpected overview %+v", overview)
	}

	overview, err = svc.GetTeamOverview(ctx, models.Principal{UserID: "member"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overview.CanInvite {
		t.Fatalf("members must not be able to invite")
	}

	if _, err := svc.GetTeamOverview(ctx, models.Principal{UserID: "nobody"}); !errors.Is(err, apperrors.ErrNotTeamMember) {
		t.Fatalf("expected ErrNotTeamMember, got %v", err)
	}
}
