package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/assacalos/megvie/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowUpLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewFollowUpService(db)
	m := testutil.CreateMember(t, db, "Gnagne")
	ctx := context.Background()

	f, err := svc.Create(ctx, values(
		"fidele_id", fmt.Sprint(m.ID),
		"date", "2025-04-02",
		"statut", "confirme",
		"nature_echange", "telephonique",
		"motif_echange", "Prise de nouvelles",
	))
	require.NoError(t, err)
	require.NotNil(t, f.Fidele)
	assert.Equal(t, "Gnagne", f.Fidele.Nom)
	assert.Equal(t, "2025-04-02", f.Date.Format("2006-01-02"))
	assert.Equal(t, "confirme", *f.Statut)

	f, err = svc.Update(ctx, f.ID, values("observation", "Rappeler dimanche", "statut", "injoignable"))
	require.NoError(t, err)
	assert.Equal(t, "injoignable", *f.Statut)
	assert.Equal(t, "Rappeler dimanche", *f.Observation)
	assert.Equal(t, "telephonique", *f.NatureEchange)
	assert.Equal(t, "2025-04-02", f.Date.Format("2006-01-02"))

	require.NoError(t, svc.Delete(ctx, f.ID))
	assert.ErrorIs(t, svc.Delete(ctx, f.ID), ErrNotFound)
	_, err = svc.Update(ctx, f.ID, values("statut", "confirme"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFollowUpValidation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewFollowUpService(db)
	m := testutil.CreateMember(t, db, "Gnagne")
	ctx := context.Background()

	_, err := svc.Create(ctx, values("fidele_id", "77", "statut", "perdu", "nature_echange", "courrier"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, k := range []string{"fidele_id", "date", "statut", "nature_echange"} {
		assert.Contains(t, verr.Fields, k)
	}

	f, err := svc.Create(ctx, values("fidele_id", fmt.Sprint(m.ID), "date", "2025-04-02"))
	require.NoError(t, err)
	_, err = svc.Update(ctx, f.ID, values("date", ""))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "date")
}

func TestActionLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewActionService(db)
	m := testutil.CreateMember(t, db, "Bamba")
	ctx := context.Background()

	_, err := svc.Create(ctx, values("fidele_id", fmt.Sprint(m.ID), "type", "don", "montant", "abc"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, k := range []string{"date", "type", "montant"} {
		assert.Contains(t, verr.Fields, k)
	}

	a, err := svc.Create(ctx, values("fidele_id", fmt.Sprint(m.ID), "type", "action_sociale", "date", "2025-05-10", "montant", "25000"))
	require.NoError(t, err)
	assert.Equal(t, "Bamba", a.Fidele.Nom)
	assert.InDelta(t, 25000, *a.Montant, 0.001)

	a, err = svc.Update(ctx, a.ID, values("description", "Kit scolaire", "montant", ""))
	require.NoError(t, err)
	assert.Nil(t, a.Montant)
	assert.Equal(t, "Kit scolaire", *a.Description)
	assert.Equal(t, "action_sociale", *a.Type)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), ErrNotFound)
}
