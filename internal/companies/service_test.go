package companies

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client, outbox.NewService(outbox.NewRepository(client.DB()), nil))
	require.NoError(t, err)
	return svc, client
}

func strPtr(v string) *string { return &v }

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
}

func TestCreateCompanyWithBranches(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	company, err := svc.Create(ctx, CreateInput{
		Name:    "  Acme GmbH ",
		Website: strPtr("https://acme.example"),
		Tags:    []string{"vip", "vip", " "},
		CustomFields: map[string]any{
			"vat":     "DE123",
			"Country": "Germany",
			"city":    "Berlin",
		},
		Branches: []BranchInput{{Name: strPtr("HQ"), City: strPtr("Berlin")}},
	})
	require.NoError(t, err)
	require.Equal(t, "Acme GmbH", company.Name)
	require.Equal(t, []string{"vip"}, company.Tags)
	require.Equal(t, "Germany", *company.Country)
	require.Equal(t, "Berlin", *company.City)
	require.Equal(t, map[string]any{"vat": "DE123"}, company.CustomFields)

	loaded, err := svc.Get(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Branches, 1)
	require.Equal(t, "HQ", loaded.Branches[0].Name)
	require.Equal(t, "DE123", loaded.CustomFields["vat"])

	events, err := outbox.NewRepository(client.DB()).ListForAggregate(nil, enums.AggregateCompany, company.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventCompanyCreated, events[0].EventType)
}

func TestCreateCompanyValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateInput{
		Name:     " ",
		Branches: []BranchInput{{City: strPtr("Rome")}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	require.Equal(t, "required", details["name"])
	require.Equal(t, "required", details["branches[0].name"])
}

func TestExplicitLocationWinsOverLegacyField(t *testing.T) {
	svc, _ := newTestService(t)
	company, err := svc.Create(context.Background(), CreateInput{
		Name:         "Globex",
		Country:      strPtr("Italy"),
		CustomFields: map[string]any{"country": "Spain"},
	})
	require.NoError(t, err)
	require.Equal(t, "Italy", *company.Country)
	require.Empty(t, company.CustomFields)
}

func TestUpdateCompany(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	company, err := svc.Create(ctx, CreateInput{Name: "Initech"})
	require.NoError(t, err)

	fields := map[string]any{"size": "50-100", "city": "Austin"}
	tags := []string{"prospect"}
	updated, err := svc.Update(ctx, company.ID, UpdateInput{
		Name:         strPtr("Initech LLC"),
		Tags:         &tags,
		CustomFields: &fields,
	})
	require.NoError(t, err)
	require.Equal(t, "Initech LLC", updated.Name)
	require.Equal(t, "Austin", *updated.City)
	require.Equal(t, map[string]any{"size": "50-100"}, updated.CustomFields)

	_, err = svc.Update(ctx, company.ID, UpdateInput{Name: strPtr("")})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestListCompaniesFiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := svc.Create(ctx, CreateInput{Name: name, Tags: []string{"t-" + name}, Country: strPtr("Italy")})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	page, err := svc.List(ctx, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "Gamma", page.Items[0].Name)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.List(ctx, ListParams{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	require.Equal(t, "Alpha", next.Items[0].Name)
	require.Empty(t, next.NextCursor)

	byTag, err := svc.List(ctx, ListParams{Tag: "t-Beta"})
	require.NoError(t, err)
	require.Len(t, byTag.Items, 1)

	bySearch, err := svc.List(ctx, ListParams{Search: "amm", Country: "italy"})
	require.NoError(t, err)
	require.Len(t, bySearch.Items, 1)

	empty, err := svc.List(ctx, ListParams{Search: "nothing"})
	require.NoError(t, err)
	require.NotNil(t, empty.Items)
	require.Empty(t, empty.Items)

	_, err = svc.List(ctx, ListParams{Cursor: "%%%"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDeleteCompany(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	free, err := svc.Create(ctx, CreateInput{Name: "Free", Branches: []BranchInput{{Name: strPtr("Main")}}})
	require.NoError(t, err)

	contact := models.Contact{FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, client.DB().Create(&contact).Error)
	activity := models.AreaOfActivity{ContactID: contact.ID, CompanyID: &free.ID, IsPrimary: true}
	require.NoError(t, client.DB().Create(&activity).Error)

	require.NoError(t, svc.Delete(ctx, free.ID))
	_, err = svc.Get(ctx, free.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	// the activity row survives and now points at nothing
	var count int64
	require.NoError(t, client.DB().Model(&models.AreaOfActivity{}).Where("id = ?", activity.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	busy, err := svc.Create(ctx, CreateInput{Name: "Busy"})
	require.NoError(t, err)
	deal := models.Deal{Name: "Big", Value: decimal.NewFromInt(10), CompanyID: &busy.ID}
	require.NoError(t, client.DB().Create(&deal).Error)

	err = svc.Delete(ctx, busy.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
	require.Equal(t, []uuid.UUID{deal.ID}, typed.Details().(Reference).DealIDs)

	require.True(t, pkgerrors.Is(svc.Delete(ctx, uuid.New()), pkgerrors.CodeNotFound))
}

func TestBranchLifecycle(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	company, err := svc.Create(ctx, CreateInput{Name: "Umbrella"})
	require.NoError(t, err)

	_, err = svc.AddBranch(ctx, company.ID, BranchInput{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = svc.AddBranch(ctx, uuid.New(), BranchInput{Name: strPtr("X")})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	branch, err := svc.AddBranch(ctx, company.ID, BranchInput{Name: strPtr("Raccoon City"), Country: strPtr("US")})
	require.NoError(t, err)

	updated, err := svc.UpdateBranch(ctx, company.ID, branch.ID, BranchInput{Address: strPtr("1 Main St")})
	require.NoError(t, err)
	require.Equal(t, "Raccoon City", updated.Name)
	require.Equal(t, "1 Main St", *updated.Address)

	_, err = svc.UpdateBranch(ctx, uuid.New(), branch.ID, BranchInput{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	branches, err := svc.ListBranches(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, branches, 1)

	contact := models.Contact{FirstName: "Jill", LastName: "Valentine"}
	require.NoError(t, client.DB().Create(&contact).Error)
	activity := models.AreaOfActivity{ContactID: contact.ID, CompanyID: &company.ID, BranchID: &branch.ID, IsPrimary: true}
	require.NoError(t, client.DB().Create(&activity).Error)

	require.NoError(t, svc.RemoveBranch(ctx, company.ID, branch.ID))
	var reloaded models.AreaOfActivity
	require.NoError(t, client.DB().First(&reloaded, "id = ?", activity.ID).Error)
	require.Nil(t, reloaded.BranchID)

	require.True(t, pkgerrors.Is(svc.RemoveBranch(ctx, company.ID, branch.ID), pkgerrors.CodeNotFound))

	_, err = svc.ListBranches(ctx, uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
