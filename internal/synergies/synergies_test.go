package synergies

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/crm-backend/internal/locks"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
)

type fixture struct {
	svc     Service
	deriver Deriver
	client  *db.Client
	locker  locks.Locker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	locker := locks.NewLocalLocker(5 * time.Second)
	params := Params{
		Repo:   NewRepository(client.DB()),
		Tx:     client,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Locker: locker,
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	deriver, err := NewDeriver(params)
	require.NoError(t, err)
	return fixture{svc: svc, deriver: deriver, client: client, locker: locker}
}

func (f fixture) contact(t *testing.T) uuid.UUID {
	t.Helper()
	c := models.Contact{FirstName: "C", LastName: uuid.NewString()[:6]}
	require.NoError(t, f.client.DB().Create(&c).Error)
	return c.ID
}

func (f fixture) company(t *testing.T) uuid.UUID {
	t.Helper()
	c := models.Company{Name: "K-" + uuid.NewString()[:6]}
	require.NoError(t, f.client.DB().Create(&c).Error)
	return c.ID
}

func (f fixture) deal(t *testing.T, contactID, companyID *uuid.UUID) models.Deal {
	t.Helper()
	d := models.Deal{Name: "D", Value: decimal.NewFromInt(100), ContactID: contactID, CompanyID: companyID}
	require.NoError(t, f.client.DB().Create(&d).Error)
	return d
}

// setAssociation rewrites the deal's ids the way the deals service would
// and runs the deriver with the previous pair.
func (f fixture) setAssociation(t *testing.T, deal *models.Deal, contactID, companyID *uuid.UUID) *Derivation {
	t.Helper()
	prevContact, prevCompany := deal.ContactID, deal.CompanyID
	deal.ContactID, deal.CompanyID = contactID, companyID
	require.NoError(t, f.client.DB().Save(deal).Error)
	out, err := f.deriver.OnDealAssociationChanged(context.Background(), *deal, prevContact, prevCompany)
	require.NoError(t, err)
	return out
}

func (f fixture) live(t *testing.T, dealID uuid.UUID) []models.Synergy {
	t.Helper()
	var rows []models.Synergy
	require.NoError(t, f.client.DB().Where("deal_id = ? AND status <> ?", dealID, enums.SynergyStatusArchived).Find(&rows).Error)
	return rows
}

func idPtr(id uuid.UUID) *uuid.UUID { return &id }
func strPtr(v string) *string      { return &v }

func TestCreateRequiresDealID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{ContactID: f.contact(t), CompanyID: f.company(t)})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, map[string]string{"deal_id": "required"}, typed.Details())
}

func TestCreateRequiresMatchingDeal(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), nil)

	_, err := f.svc.Create(context.Background(), CreateInput{ContactID: c, CompanyID: k, DealID: deal.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(context.Background(), CreateInput{ContactID: c, CompanyID: k, DealID: uuid.New()})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCreateRejectsSecondLiveSynergyForTriple(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))

	_, err := f.svc.Create(context.Background(), CreateInput{ContactID: c, CompanyID: k, DealID: deal.ID})
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), CreateInput{ContactID: c, CompanyID: k, DealID: deal.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestAssociationChangeArchivesOldAndCreatesNew(t *testing.T) {
	f := newFixture(t)
	c1, c2, k1 := f.contact(t), f.contact(t), f.company(t)
	deal := f.deal(t, nil, nil)

	out := f.setAssociation(t, &deal, idPtr(c1), idPtr(k1))
	require.NotNil(t, out.Created)
	require.Empty(t, out.Archived)
	s1 := *out.Created
	require.Equal(t, enums.SynergyStatusActive, s1.Status)
	require.True(t, s1.Matches(c1, k1, deal.ID))
	require.False(t, s1.StartDate.IsZero())
	require.Nil(t, s1.EndDate)

	out = f.setAssociation(t, &deal, idPtr(c2), idPtr(k1))
	require.Len(t, out.Archived, 1)
	require.Equal(t, s1.ID, out.Archived[0].ID)
	require.NotNil(t, out.Created)
	require.True(t, out.Created.Matches(c2, k1, deal.ID))

	archived, err := f.svc.Get(context.Background(), s1.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SynergyStatusArchived, archived.Status)
	require.NotNil(t, archived.EndDate)

	live := f.live(t, deal.ID)
	require.Len(t, live, 1)
	require.Equal(t, out.Created.ID, live[0].ID)

	history, err := f.svc.ListForDeal(context.Background(), deal.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestDerivedArchiveKeepsEditedDescription(t *testing.T) {
	f := newFixture(t)
	c1, c2, k := f.contact(t), f.contact(t), f.company(t)
	deal := f.deal(t, nil, nil)
	out := f.setAssociation(t, &deal, idPtr(c1), idPtr(k))
	require.NotNil(t, out.Created)

	_, err := f.svc.Update(context.Background(), out.Created.ID, UpdateInput{Description: strPtr("renewal in Q3")})
	require.NoError(t, err)

	out2 := f.setAssociation(t, &deal, idPtr(c2), idPtr(k))
	require.Len(t, out2.Archived, 1)

	archived, err := f.svc.Get(context.Background(), out.Created.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SynergyStatusArchived, archived.Status)
	require.NotNil(t, archived.Description)
	require.Equal(t, "renewal in Q3", *archived.Description)
}

func TestArchiveWithDescriptionPersistsBoth(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))
	ctx := context.Background()
	s, err := f.svc.Create(ctx, CreateInput{ContactID: c, CompanyID: k, DealID: deal.ID})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, s.ID, UpdateInput{Status: strPtr(string(enums.SynergyStatusArchived)), Description: strPtr("lost to competitor")})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SynergyStatusArchived, got.Status)
	require.NotNil(t, got.EndDate)
	require.Equal(t, "lost to competitor", *got.Description)
}

func TestManualEditsWaitForDealKey(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))
	s, err := f.svc.Create(context.Background(), CreateInput{ContactID: c, CompanyID: k, DealID: deal.ID})
	require.NoError(t, err)

	release, err := f.locker.Acquire(context.Background(), locks.Key("deal", deal.ID.String()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.svc.Archive(ctx, s.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err = f.svc.Update(ctx2, s.ID, UpdateInput{Description: strPtr("x")})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release(context.Background()))
	archived, err := f.svc.Archive(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SynergyStatusArchived, archived.Status)
}

func TestClearingAssociationArchivesWithoutReplacement(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, nil, nil)
	out := f.setAssociation(t, &deal, idPtr(c), idPtr(k))
	require.NotNil(t, out.Created)

	out = f.setAssociation(t, &deal, idPtr(c), nil)
	require.Nil(t, out.Created)
	require.Len(t, out.Archived, 1)
	require.Empty(t, f.live(t, deal.ID))
}

func TestDerivationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))
	ctx := context.Background()

	first, err := f.deriver.OnDealAssociationChanged(ctx, deal, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, first.Created)

	for i := 0; i < 3; i++ {
		again, err := f.deriver.OnDealAssociationChanged(ctx, deal, idPtr(c), idPtr(k))
		require.NoError(t, err)
		require.Nil(t, again.Created)
		require.Empty(t, again.Archived)
	}
	require.Len(t, f.live(t, deal.ID), 1)
}

func TestArchivedDealArchivesItsSynergies(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))
	ctx := context.Background()
	_, err := f.deriver.OnDealAssociationChanged(ctx, deal, nil, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	deal.ArchivedAt = &now
	require.NoError(t, f.client.DB().Save(&deal).Error)

	out, err := f.deriver.OnDealAssociationChanged(ctx, deal, deal.ContactID, deal.CompanyID)
	require.NoError(t, err)
	require.Nil(t, out.Created)
	require.Len(t, out.Archived, 1)
	require.Empty(t, f.live(t, deal.ID))

	events, err := outbox.NewRepository(f.client.DB()).ListForAggregate(nil, enums.AggregateSynergy, out.Archived[0].ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	var archivedEvent *models.OutboxEvent
	for i := range events {
		if events[i].EventType == enums.EventSynergyArchived {
			archivedEvent = &events[i]
		}
	}
	require.NotNil(t, archivedEvent)
	require.Contains(t, string(archivedEvent.Payload), ReasonDealArchived)
}

func TestRederiveRepairsMissingSynergy(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))

	out, err := f.deriver.Rederive(context.Background(), deal.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Created)

	out, err = f.deriver.Rederive(context.Background(), deal.ID)
	require.NoError(t, err)
	require.Nil(t, out.Created)

	_, err = f.deriver.Rederive(context.Background(), uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestUpdateRejectsIdentityFields(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))
	ctx := context.Background()
	s, err := f.svc.Create(ctx, CreateInput{ContactID: c, CompanyID: k, DealID: deal.ID})
	require.NoError(t, err)

	patches := map[string]UpdateInput{
		"contact_id": {ContactID: idPtr(f.contact(t)), Description: strPtr("sneaky")},
		"company_id": {CompanyID: idPtr(k)},
		"deal_id":    {DealID: idPtr(uuid.New()), Status: strPtr("Pending")},
	}
	for field, patch := range patches {
		_, err := f.svc.Update(ctx, s.ID, patch)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, field)
		require.Equal(t, pkgerrors.CodeImmutableField, typed.Code())
		require.Equal(t, map[string]string{"field": field}, typed.Details())
	}

	unchanged, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, unchanged.Matches(c, k, deal.ID))
	require.Equal(t, enums.SynergyStatusActive, unchanged.Status)
	require.Nil(t, unchanged.Description)
}

func TestStatusMachine(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))
	ctx := context.Background()
	s, err := f.svc.Create(ctx, CreateInput{ContactID: c, CompanyID: k, DealID: deal.ID})
	require.NoError(t, err)

	for _, status := range []string{"On Hold", "pending", "Active", "Inactive", "Active"} {
		updated, err := f.svc.Update(ctx, s.ID, UpdateInput{Status: strPtr(status)})
		require.NoError(t, err, status)
		require.True(t, updated.Status.IsValid())
	}

	_, err = f.svc.Update(ctx, s.ID, UpdateInput{Status: strPtr("Exploded")})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	end := time.Now().Add(-48 * time.Hour)
	_, err = f.svc.Update(ctx, s.ID, UpdateInput{EndDate: &end})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	completed, err := f.svc.Update(ctx, s.ID, UpdateInput{Status: strPtr("Completed"), Description: strPtr("done")})
	require.NoError(t, err)
	require.Equal(t, enums.SynergyStatusCompleted, completed.Status)

	_, err = f.svc.Update(ctx, s.ID, UpdateInput{Status: strPtr("Active")})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.Update(ctx, s.ID, UpdateInput{Description: strPtr("edit")})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	archived, err := f.svc.Update(ctx, s.ID, UpdateInput{Status: strPtr("archived")})
	require.NoError(t, err)
	require.Equal(t, enums.SynergyStatusArchived, archived.Status)
	require.NotNil(t, archived.EndDate)
	endDate := *archived.EndDate

	later := time.Now().Add(time.Hour)
	for _, patch := range []UpdateInput{
		{Status: strPtr("Active")},
		{EndDate: &later},
		{Description: strPtr("revive")},
		{Status: strPtr("archived")},
	} {
		_, err := f.svc.Update(ctx, s.ID, patch)
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	}

	final, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SynergyStatusArchived, final.Status)
	require.True(t, endDate.Equal(*final.EndDate))
	require.Equal(t, "done", *final.Description)
}

func TestDeleteArchivesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	deal := f.deal(t, idPtr(c), idPtr(k))
	ctx := context.Background()
	s, err := f.svc.Create(ctx, CreateInput{ContactID: c, CompanyID: k, DealID: deal.ID})
	require.NoError(t, err)

	deleted, err := f.svc.Delete(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SynergyStatusArchived, deleted.Status)
	end := *deleted.EndDate

	again, err := f.svc.Archive(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, end.Equal(*again.EndDate))

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Synergy{}).Where("id = ?", s.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = f.svc.Delete(ctx, uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestActiveListsExcludeArchived(t *testing.T) {
	f := newFixture(t)
	c, k := f.contact(t), f.company(t)
	ctx := context.Background()

	none, err := f.svc.ListActiveForContact(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	d1 := f.deal(t, idPtr(c), idPtr(k))
	d2 := f.deal(t, idPtr(c), idPtr(k))
	s1, err := f.svc.Create(ctx, CreateInput{ContactID: c, CompanyID: k, DealID: d1.ID})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{ContactID: c, CompanyID: k, DealID: d2.ID})
	require.NoError(t, err)
	_, err = f.svc.Archive(ctx, s1.ID)
	require.NoError(t, err)

	byContact, err := f.svc.ListActiveForContact(ctx, c)
	require.NoError(t, err)
	require.Len(t, byContact, 1)
	byCompany, err := f.svc.ListActiveForCompany(ctx, k)
	require.NoError(t, err)
	require.Len(t, byCompany, 1)
	require.Equal(t, d2.ID, byCompany[0].DealID)

	_, err = f.svc.ListForDeal(ctx, uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
