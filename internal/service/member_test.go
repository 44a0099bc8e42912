package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMemberService(t *testing.T) (*MemberService, *gorm.DB, *memStore) {
	db := testutil.NewDB(t)
	store := newMemStore()
	return NewMemberService(db, store), db, store
}

func TestMemberList_Pagination(t *testing.T) {
	svc, db, _ := newMemberService(t)
	admin := testutil.CreateUser(t, db, model.RoleAdmin, "admin@megvie.test")
	for i := 0; i < 25; i++ {
		testutil.CreateMember(t, db, fmt.Sprintf("Membre %02d", i))
	}
	ctx := context.Background()

	page, err := svc.List(ctx, admin, MemberFilter{Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Data, 20)
	assert.EqualValues(t, 25, page.Total)
	assert.Equal(t, 2, page.LastPage)
	assert.True(t, page.HasMore())
	assert.Equal(t, "Membre 24", page.Data[0].Nom)

	page, err = svc.List(ctx, admin, MemberFilter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 5)
	assert.False(t, page.HasMore())
	assert.Equal(t, 21, *page.From)
	assert.Equal(t, 25, *page.To)
}

func TestMemberList_RoleVisibility(t *testing.T) {
	svc, db, _ := newMemberService(t)
	famille := testutil.CreateUser(t, db, model.RoleFamily, "famille@megvie.test")
	parrain := testutil.CreateUser(t, db, model.RoleSponsor, "parrain@megvie.test")
	worker := testutil.CreateUser(t, db, model.RoleWorker, "travailleur@megvie.test")
	social := testutil.CreateUser(t, db, model.RoleSocialService, "social@megvie.test")

	testutil.CreateMember(t, db, "A", func(m *model.Member) { m.FamilleID = &famille.ID })
	testutil.CreateMember(t, db, "B", func(m *model.Member) { m.ParrainID = &parrain.ID })
	testutil.CreateMember(t, db, "C", func(m *model.Member) { m.FamilleID = &famille.ID; m.ParrainID = &parrain.ID })
	testutil.CreateMember(t, db, "D")
	ctx := context.Background()

	names := func(u *model.User) []string {
		page, err := svc.List(ctx, u, MemberFilter{})
		require.NoError(t, err)
		var out []string
		for _, m := range page.Data {
			out = append(out, m.Nom)
		}
		return out
	}

	assert.Equal(t, []string{"C", "A"}, names(famille))
	assert.Equal(t, []string{"C", "B"}, names(parrain))
	assert.Empty(t, names(worker))
	assert.Equal(t, []string{"D", "C", "B", "A"}, names(social))

	_, err := svc.List(ctx, nil, MemberFilter{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestMemberList_PastorZones(t *testing.T) {
	svc, db, _ := newMemberService(t)
	pastor := testutil.CreateUser(t, db, model.RolePastor, "pasteur@megvie.test", func(u *model.User) {
		u.ZoneSuivi = testutil.Ptr("abobo, yopougon")
	})
	testutil.CreateMember(t, db, "Abobo", func(m *model.Member) { m.LieuResidence = testutil.Ptr("Abobo Centre") })
	testutil.CreateMember(t, db, "Cocody", func(m *model.Member) { m.LieuResidence = testutil.Ptr("Cocody") })
	testutil.CreateMember(t, db, "Assigned", func(m *model.Member) {
		m.LieuResidence = testutil.Ptr("Bingerville")
		m.PasteurID = &pastor.ID
	})

	page, err := svc.List(context.Background(), pastor, MemberFilter{})
	require.NoError(t, err)
	var got []string
	for _, m := range page.Data {
		got = append(got, m.Nom)
	}
	assert.ElementsMatch(t, []string{"Abobo", "Assigned"}, got)
}

func TestMemberList_Filters(t *testing.T) {
	svc, db, _ := newMemberService(t)
	admin := testutil.CreateUser(t, db, model.RoleSousAdmin, "sous@megvie.test")
	craft := model.Craft{Nom: "Menuisier"}
	require.NoError(t, db.Create(&craft).Error)

	day := func(d int) *time.Time {
		v := time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	testutil.CreateMember(t, db, "Kouadio", func(m *model.Member) {
		m.TrancheAge = testutil.Ptr("18-25")
		m.DateArrivee = day(5)
		m.CorpsMetierID = &craft.ID
	})
	testutil.CreateMember(t, db, "Traoré", func(m *model.Member) {
		m.TrancheAge = testutil.Ptr("26-35")
		m.LieuResidence = testutil.Ptr("Port-Bouët")
		m.DateArrivee = day(20)
	})
	ctx := context.Background()

	list := func(f MemberFilter) []string {
		page, err := svc.List(ctx, admin, f)
		require.NoError(t, err)
		var out []string
		for _, m := range page.Data {
			out = append(out, m.Nom)
		}
		return out
	}

	assert.Equal(t, []string{"Kouadio"}, list(MemberFilter{Search: "KOUA"}))
	assert.Equal(t, []string{"Traoré"}, list(MemberFilter{Search: "port"}))
	assert.Empty(t, list(MemberFilter{Search: "%"}))
	assert.Equal(t, []string{"Traoré"}, list(MemberFilter{TrancheAge: "26-35"}))
	assert.Len(t, list(MemberFilter{TrancheAge: "tous"}), 2)
	assert.Equal(t, []string{"Kouadio"}, list(MemberFilter{DateDebut: day(1), DateFin: day(5)}))
	assert.Equal(t, []string{"Traoré"}, list(MemberFilter{DateDebut: day(6)}))
	assert.Equal(t, []string{"Kouadio"}, list(MemberFilter{CorpsMetierID: &craft.ID}))
}

func TestMemberCreate_Relationships(t *testing.T) {
	svc, db, _ := newMemberService(t)
	parrain := testutil.CreateUser(t, db, model.RoleSponsor, "parrain@megvie.test")
	pastor := testutil.CreateUser(t, db, model.RolePastor, "pasteur@megvie.test")
	ctx := context.Background()

	_, err := svc.Create(ctx, values("nom", "Yao", "prenoms", "Ange", "parrain_id", "999"), nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "parrain_id")

	_, err = svc.Create(ctx, values("nom", "Yao", "prenoms", "Ange", "parrain_id", fmt.Sprint(pastor.ID)), nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "parrain_id")

	var count int64
	db.Model(&model.Member{}).Count(&count)
	assert.Zero(t, count)

	m, err := svc.Create(ctx, values(
		"nom", "Yao", "prenoms", "Ange",
		"parrain_id", fmt.Sprint(parrain.ID),
		"pasteur_id", fmt.Sprint(pastor.ID),
		"souhaite_appartenir", "1",
		"appartient_famille", "",
		"date_arrivee", "2025-02-14",
	), nil)
	require.NoError(t, err)
	require.NotNil(t, m.Parrain)
	assert.Equal(t, parrain.ID, m.Parrain.ID)
	require.NotNil(t, m.Pasteur)
	assert.Equal(t, model.StatusNouvelAme, m.Statut)
	assert.Equal(t, true, *m.SouhaiteAppartenir)
	assert.Nil(t, m.AppartientFamille)
	assert.NotNil(t, m.DateMiseAJourParrainage)
	assert.Nil(t, m.DateMiseAJourPasteur)
}

func TestMemberCreate_Validation(t *testing.T) {
	svc, _, _ := newMemberService(t)

	_, err := svc.Create(context.Background(), values("nom", " ", "statut", "membre", "baptise_eau", "peut-être", "corps_metier_id", "3"), nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, k := range []string{"nom", "prenoms", "statut", "baptise_eau", "corps_metier_id"} {
		assert.Contains(t, verr.Fields, k)
	}
}

func TestMemberUpdate_ClearsRelationship(t *testing.T) {
	svc, db, _ := newMemberService(t)
	famille := testutil.CreateUser(t, db, model.RoleFamily, "famille@megvie.test")
	m := testutil.CreateMember(t, db, "Koffi", func(m *model.Member) { m.FamilleID = &famille.ID })

	got, err := svc.Update(context.Background(), m.ID, values("famille_id", ""), nil)
	require.NoError(t, err)
	assert.Nil(t, got.FamilleID)
	assert.Nil(t, got.Famille)

	var stored model.Member
	require.NoError(t, db.First(&stored, m.ID).Error)
	assert.Nil(t, stored.FamilleID)
	assert.Equal(t, "Koffi", stored.Nom)
}

func TestMemberUpdate_GroupTimestamps(t *testing.T) {
	svc, db, _ := newMemberService(t)
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	m := testutil.CreateMember(t, db, "Aka")

	v := values("mariage", "true", "formation", "BTS")
	v["baptise_eau"] = nil
	got, err := svc.Update(context.Background(), m.ID, v, nil)
	require.NoError(t, err)

	assert.True(t, *got.Mariage)
	assert.Nil(t, got.BaptiseEau)
	assert.Equal(t, "BTS", *got.Formation)
	require.NotNil(t, got.DateMiseAJourPasteur)
	assert.True(t, fixed.Equal(*got.DateMiseAJourPasteur))
	require.NotNil(t, got.DateMiseAJourSocioPro)
	assert.True(t, fixed.Equal(*got.DateDerniereMiseAJour))
	assert.Nil(t, got.DateMiseAJourParrainage)

	got, err = svc.Update(context.Background(), m.ID, values("profession", "Comptable"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Comptable", *got.Profession)
	assert.True(t, *got.Mariage)

	_, err = svc.Update(context.Background(), 4242, values("nom", "X"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemberPhoto(t *testing.T) {
	svc, _, store := newMemberService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, values("nom", "N", "prenoms", "P"), &Photo{Filename: "cv.pdf", Body: bytes.NewReader([]byte("%PDF-1.4 hello"))})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "photo")

	big := append(append([]byte{}, pngHeader...), make([]byte, MaxPhotoBytes)...)
	_, err = svc.Create(ctx, values("nom", "N", "prenoms", "P"), &Photo{Filename: "big.png", Body: bytes.NewReader(big)})
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, store.objects)

	m, err := svc.Create(ctx, values("nom", "N", "prenoms", "P"), &Photo{Filename: "me.PNG", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	require.NotNil(t, m.Photo)
	assert.Regexp(t, `^photos/\d{4}/\d{2}/[0-9a-f]{8}\.png$`, *m.Photo)
	assert.Equal(t, "http://cdn.test/"+*m.Photo, *m.PhotoURL)
	first := *m.Photo

	store.failDelete = true
	m, err = svc.Update(ctx, m.ID, values(), &Photo{Filename: "new.png", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.NotEqual(t, first, *m.Photo)
	assert.Equal(t, []string{first}, store.deleted)
}

func TestMemberPhoto_ExtensionFromContent(t *testing.T) {
	svc, _, store := newMemberService(t)
	ctx := context.Background()

	gif := []byte("GIF89a<script>alert(document.cookie)</script>")
	m, err := svc.Create(ctx, values("nom", "N", "prenoms", "P"), &Photo{Filename: "x.html", Body: bytes.NewReader(gif)})
	require.NoError(t, err)
	require.NotNil(t, m.Photo)
	assert.Regexp(t, `^photos/\d{4}/\d{2}/[0-9a-f]{8}\.gif$`, *m.Photo)
	assert.Equal(t, "image/gif", store.types[*m.Photo])

	m, err = svc.Create(ctx, values("nom", "N", "prenoms", "P"), &Photo{Filename: "photo", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(*m.Photo, ".png"))

	// image types outside the accepted list are refused
	icon := []byte("\x00\x00\x01\x00\x01\x00\x10\x10")
	_, err = svc.Create(ctx, values("nom", "N", "prenoms", "P"), &Photo{Filename: "fav.png", Body: bytes.NewReader(icon)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "photo")

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)
	_, err = svc.Create(ctx, values("nom", "N", "prenoms", "P"), &Photo{Filename: "logo.svg", Body: bytes.NewReader(svg)})
	require.ErrorAs(t, err, &verr)
	assert.Len(t, store.objects, 2)
}

func TestMemberDelete_Cascade(t *testing.T) {
	svc, db, store := newMemberService(t)
	m := testutil.CreateMember(t, db, "Brou", func(m *model.Member) { m.Photo = testutil.Ptr("photos/2025/01/abcd1234.jpg") })
	other := testutil.CreateMember(t, db, "Other")
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&[]model.FollowUp{{FideleID: m.ID, Date: day}, {FideleID: m.ID, Date: day}, {FideleID: other.ID, Date: day}}).Error)
	require.NoError(t, db.Create(&model.Action{FideleID: m.ID, Date: day}).Error)

	require.NoError(t, svc.Delete(context.Background(), m.ID))

	var n int64
	db.Model(&model.FollowUp{}).Where("fidele_id = ?", m.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&model.Action{}).Where("fidele_id = ?", m.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&model.Member{}).Where("id = ?", m.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&model.FollowUp{}).Count(&n)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, []string{"photos/2025/01/abcd1234.jpg"}, store.deleted)

	assert.ErrorIs(t, svc.Delete(context.Background(), m.ID), ErrNotFound)
}

func TestMemberGet_Scoped(t *testing.T) {
	svc, db, _ := newMemberService(t)
	parrain := testutil.CreateUser(t, db, model.RoleSponsor, "parrain@megvie.test")
	mine := testutil.CreateMember(t, db, "Mine", func(m *model.Member) { m.ParrainID = &parrain.ID })
	theirs := testutil.CreateMember(t, db, "Theirs")
	require.NoError(t, db.Create(&model.FollowUp{FideleID: mine.ID, Date: time.Now()}).Error)
	ctx := context.Background()

	got, err := svc.Get(ctx, parrain, mine.ID)
	require.NoError(t, err)
	assert.Len(t, got.Suivis, 1)
	assert.Equal(t, parrain.ID, got.Parrain.ID)

	_, err = svc.Get(ctx, parrain, theirs.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemberStatsAndExport(t *testing.T) {
	svc, db, _ := newMemberService(t)
	famille := testutil.CreateUser(t, db, model.RoleFamily, "famille@megvie.test")
	a := testutil.CreateMember(t, db, "A", func(m *model.Member) {
		m.Statut = model.StatusFidele
		m.BaptiseEau = testutil.Ptr(true)
		m.FamilleID = &famille.ID
	})
	testutil.CreateMember(t, db, "B", func(m *model.Member) { m.BaptiseEau = testutil.Ptr(false) })
	testutil.CreateMember(t, db, "C")
	require.NoError(t, db.Create(&[]model.FollowUp{{FideleID: a.ID, Date: time.Now()}, {FideleID: a.ID, Date: time.Now()}}).Error)

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.MemberStats{
		Total: 3, Fideles: 1, NouvellesAmes: 2, Baptises: 1, Suivis: 1,
		SansFamille: 2, SansParrain: 3, SansPasteur: 3,
	}, *st)

	rows, err := svc.Export(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, famille.ID, rows[0].Famille.ID)
}
