package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/policy"
	"github.com/assacalos/megvie/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PageSize      = 20
	MaxPhotoBytes = 2 << 20
	photoPrefix   = "photos"
	allAges       = "tous"
)

var (
	memberStatuses = []string{model.StatusFidele, model.StatusNouvelAme}

	pastoralFields    = []string{"baptise_eau", "baptise_saint_esprit", "cure_d_ame", "delivrance", "mariage"}
	sponsorshipFields = []string{"parrain_id", "pasteur_id", "famille_id"}
	socioProFields    = []string{"formation", "annee_experience", "corps_metier_id"}

	listRelations   = []string{"Parrain", "Pasteur", "Famille", "CorpsMetier"}
	detailRelations = []string{"Parrain", "Pasteur", "Famille", "CorpsMetier", "Suivis", "Actions"}
)

type MemberFilter struct {
	Search        string
	TrancheAge    string
	DateDebut     *time.Time
	DateFin       *time.Time
	CorpsMetierID *uint
	Page          int
}

// Photo is an uploaded member picture.
type Photo struct {
	Filename string
	Body     io.Reader
}

type MemberService struct {
	db    *gorm.DB
	store storage.Store
	now   func() time.Time
}

func NewMemberService(db *gorm.DB, store storage.Store) *MemberService {
	return &MemberService{db: db, store: store, now: time.Now}
}

func (s *MemberService) List(ctx context.Context, caller *model.User, f MemberFilter) (model.Page[model.Member], error) {
	scope, err := memberScope(caller)
	if err != nil {
		return model.Page[model.Member]{}, err
	}
	if f.Page < 1 {
		f.Page = 1
	}

	q := scope.Apply(s.db.WithContext(ctx).Model(&model.Member{}))
	if search := strings.TrimSpace(f.Search); search != "" {
		p := policy.ContainsPattern(search)
		q = q.Where("(LOWER(fideles.nom) LIKE ? ESCAPE '!' OR LOWER(fideles.prenoms) LIKE ? ESCAPE '!' OR LOWER(fideles.lieu_residence) LIKE ? ESCAPE '!')", p, p, p)
	}
	if age := strings.TrimSpace(f.TrancheAge); age != "" && age != allAges {
		q = q.Where("fideles.tranche_age = ?", age)
	}
	if f.DateDebut != nil {
		q = q.Where("fideles.date_arrivee >= ?", *f.DateDebut)
	}
	if f.DateFin != nil {
		q = q.Where("fideles.date_arrivee <= ?", *f.DateFin)
	}
	if f.CorpsMetierID != nil {
		q = q.Where("fideles.corps_metier_id = ?", *f.CorpsMetierID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return model.Page[model.Member]{}, fmt.Errorf("count members: %w", err)
	}

	var rows []model.Member
	err = preload(q, listRelations).
		Order("fideles.created_at DESC").Order("fideles.id DESC").
		Limit(PageSize).Offset((f.Page - 1) * PageSize).
		Find(&rows).Error
	if err != nil {
		return model.Page[model.Member]{}, fmt.Errorf("list members: %w", err)
	}
	for i := range rows {
		s.decorate(&rows[i])
	}
	return model.NewPage(rows, f.Page, PageSize, total), nil
}

// Get returns one member with follow-ups and actions, provided caller may see it.
func (s *MemberService) Get(ctx context.Context, caller *model.User, id uint) (*model.Member, error) {
	scope, err := memberScope(caller)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, scope.Apply(s.db.WithContext(ctx)), id, detailRelations)
}

func (s *MemberService) Create(ctx context.Context, v form.Values, photo *Photo) (*model.Member, error) {
	errs := form.Errors{}
	m := &model.Member{Statut: model.StatusNouvelAme}
	m.Nom = v.Required("nom", errs)
	m.Prenoms = v.Required("prenoms", errs)
	if err := s.bind(ctx, v, m, errs); err != nil {
		return nil, err
	}
	upload := readPhoto(photo, errs)
	if err := invalid(errs); err != nil {
		return nil, err
	}

	if upload != nil {
		key, err := s.putPhoto(ctx, upload)
		if err != nil {
			return nil, err
		}
		m.Photo = &key
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		if m.Photo != nil {
			s.deletePhoto(ctx, *m.Photo)
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}
	logger.From(ctx).Info("member.create", "id", m.ID)
	return s.find(ctx, s.db.WithContext(ctx), m.ID, listRelations)
}

// Update applies the keys present in v. An empty relationship id clears it.
func (s *MemberService) Update(ctx context.Context, id uint, v form.Values, photo *Photo) (*model.Member, error) {
	m, err := s.find(ctx, s.db.WithContext(ctx), id, nil)
	if err != nil {
		return nil, err
	}

	errs := form.Errors{}
	if v.Has("nom") {
		m.Nom = v.Required("nom", errs)
	}
	if v.Has("prenoms") {
		m.Prenoms = v.Required("prenoms", errs)
	}
	if err := s.bind(ctx, v, m, errs); err != nil {
		return nil, err
	}
	upload := readPhoto(photo, errs)
	if err := invalid(errs); err != nil {
		return nil, err
	}

	var oldPhoto string
	if upload != nil {
		key, err := s.putPhoto(ctx, upload)
		if err != nil {
			return nil, err
		}
		if m.Photo != nil {
			oldPhoto = *m.Photo
		}
		m.Photo = &key
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error; err != nil {
		if upload != nil {
			s.deletePhoto(ctx, *m.Photo)
		}
		return nil, fmt.Errorf("update member: %w", err)
	}
	if oldPhoto != "" {
		s.deletePhoto(ctx, oldPhoto)
	}
	logger.From(ctx).Info("member.update", "id", m.ID)
	return s.find(ctx, s.db.WithContext(ctx), m.ID, listRelations)
}

// Delete removes the member together with its follow-ups and actions.
func (s *MemberService) Delete(ctx context.Context, id uint) error {
	m, err := s.find(ctx, s.db.WithContext(ctx), id, nil)
	if err != nil {
		return err
	}
	if m.Photo != nil && *m.Photo != "" {
		s.deletePhoto(ctx, *m.Photo)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fidele_id = ?", m.ID).Delete(&model.FollowUp{}).Error; err != nil {
			return fmt.Errorf("delete follow-ups: %w", err)
		}
		if err := tx.Where("fidele_id = ?", m.ID).Delete(&model.Action{}).Error; err != nil {
			return fmt.Errorf("delete actions: %w", err)
		}
		if err := tx.Delete(&model.Member{}, m.ID).Error; err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info("member.delete", "id", m.ID)
	return nil
}

func (s *MemberService) Stats(ctx context.Context) (*model.MemberStats, error) {
	var st model.MemberStats
	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&st.Total, "", nil},
		{&st.Fideles, "statut = ?", []any{model.StatusFidele}},
		{&st.NouvellesAmes, "statut = ?", []any{model.StatusNouvelAme}},
		{&st.Baptises, "baptise_eau = ?", []any{true}},
		{&st.Suivis, "EXISTS (SELECT 1 FROM suivis WHERE suivis.fidele_id = fideles.id)", nil},
		{&st.SansFamille, "famille_id IS NULL", nil},
		{&st.SansParrain, "parrain_id IS NULL", nil},
		{&st.SansPasteur, "pasteur_id IS NULL", nil},
	}
	for _, c := range counts {
		q := s.db.WithContext(ctx).Model(&model.Member{})
		if c.query != "" {
			q = q.Where(c.query, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("member stats: %w", err)
		}
	}
	return &st, nil
}

// Export returns every member, unpaginated.
func (s *MemberService) Export(ctx context.Context) ([]model.Member, error) {
	var rows []model.Member
	if err := preload(s.db.WithContext(ctx), listRelations).Order("fideles.id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("export members: %w", err)
	}
	for i := range rows {
		s.decorate(&rows[i])
	}
	return rows, nil
}

// bind copies every optional field present in v onto m, validating
// relationship ids against the database.
func (s *MemberService) bind(ctx context.Context, v form.Values, m *model.Member, errs form.Errors) error {
	assign(&m.TrancheAge, v.String("tranche_age", 255, errs))
	assign(&m.LieuResidence, v.String("lieu_residence", 255, errs))
	assign(&m.CommentConnu, v.String("comment_connu", 255, errs))
	assign(&m.ButVisite, v.String("but_visite", 255, errs))
	assign(&m.QuiInvite, v.String("qui_invite", 255, errs))
	assign(&m.FrequenteEglise, v.String("frequente_eglise", 255, errs))
	assign(&m.Profession, v.String("profession", 255, errs))
	assign(&m.Facebook, v.String("facebook", 255, errs))
	assign(&m.Contacts, v.String("contacts", 255, errs))
	assign(&m.Whatsapp, v.String("whatsapp", 255, errs))
	assign(&m.Instagram, v.String("instagram", 255, errs))
	assign(&m.Email, v.Email("email", errs))
	assign(&m.FamilleMois, v.String("famille_mois", 255, errs))
	assign(&m.Formation, v.String("formation", 255, errs))
	assign(&m.DateArrivee, v.Date("date_arrivee", errs))
	assign(&m.SouhaiteAppartenir, v.Bool("souhaite_appartenir", errs))
	assign(&m.AppartientFamille, v.Bool("appartient_famille", errs))
	assign(&m.BaptiseEau, v.Bool("baptise_eau", errs))
	assign(&m.BaptiseSaintEsprit, v.Bool("baptise_saint_esprit", errs))
	assign(&m.CureDAme, v.Bool("cure_d_ame", errs))
	assign(&m.Delivrance, v.Bool("delivrance", errs))
	assign(&m.Mariage, v.Bool("mariage", errs))

	// a blank status keeps the current one
	if st := v.Enum("statut", memberStatuses, errs); st.Value != nil {
		m.Statut = *st.Value
	}

	exp := v.Int("annee_experience", errs)
	if exp.Value != nil && *exp.Value < 0 {
		errs.Add("annee_experience", "The annee_experience field must be at least 0.")
	}
	assign(&m.AnneeExperience, exp)

	refs := []struct {
		key  string
		dst  **uint
		role model.Role
	}{
		{"parrain_id", &m.ParrainID, model.RoleSponsor},
		{"pasteur_id", &m.PasteurID, model.RolePastor},
		{"famille_id", &m.FamilleID, model.RoleFamily},
	}
	for _, r := range refs {
		f := v.ID(r.key, errs)
		if f.Value != nil {
			if err := checkUserRole(ctx, s.db, *f.Value, r.role, r.key, errs); err != nil {
				return err
			}
		}
		assign(r.dst, f)
	}

	craft := v.ID("corps_metier_id", errs)
	if craft.Value != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&model.Craft{}).Where("id = ?", *craft.Value).Count(&n).Error; err != nil {
			return fmt.Errorf("check craft: %w", err)
		}
		if n == 0 {
			errs.Add("corps_metier_id", "The selected corps_metier_id is invalid.")
		}
	}
	assign(&m.CorpsMetierID, craft)

	s.stamp(v, m)
	return nil
}

// stamp records when each group of fields was last touched.
func (s *MemberService) stamp(v form.Values, m *model.Member) {
	now := s.now()
	touched := false
	if v.HasAny(pastoralFields...) {
		m.DateMiseAJourPasteur = &now
		touched = true
	}
	if v.HasAny(sponsorshipFields...) {
		m.DateMiseAJourParrainage = &now
		touched = true
	}
	if v.HasAny(socioProFields...) {
		m.DateMiseAJourSocioPro = &now
		touched = true
	}
	if touched {
		m.DateDerniereMiseAJour = &now
	}
}

func (s *MemberService) find(ctx context.Context, q *gorm.DB, id uint, relations []string) (*model.Member, error) {
	var m model.Member
	err := preload(q, relations).First(&m, "fideles.id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	s.decorate(&m)
	return &m, nil
}

func (s *MemberService) decorate(m *model.Member) {
	if m.Photo != nil && *m.Photo != "" && s.store != nil {
		u := s.store.URL(*m.Photo)
		m.PhotoURL = &u
	}
}

// photoTypes maps the accepted sniffed content types to the stored extension.
var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

type photoUpload struct {
	ext         string
	contentType string
	data        []byte
}

// readPhoto accepts images up to MaxPhotoBytes. The content type and the
// stored extension both come from the bytes; the client filename is ignored.
func readPhoto(p *Photo, errs form.Errors) *photoUpload {
	if p == nil || p.Body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(p.Body, MaxPhotoBytes+1))
	if err != nil {
		errs.Add("photo", "The photo failed to upload.")
		return nil
	}
	if len(data) > MaxPhotoBytes {
		errs.Add("photo", "The photo field must not be greater than 2048 kilobytes.")
		return nil
	}
	ct := http.DetectContentType(data)
	ext, ok := photoTypes[ct]
	if !ok {
		errs.Add("photo", "The photo field must be an image.")
		return nil
	}
	return &photoUpload{ext: ext, contentType: ct, data: data}
}

func (s *MemberService) putPhoto(ctx context.Context, p *photoUpload) (string, error) {
	key := storage.NewKey(photoPrefix, p.ext)
	if err := s.store.Put(ctx, key, bytes.NewReader(p.data), &storage.PutOptions{ContentType: p.contentType}); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	return key, nil
}

func (s *MemberService) deletePhoto(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		logger.From(ctx).Warn("member.photo_delete_failed", "key", key, "err", err)
	}
}

func memberScope(caller *model.User) (policy.Scope, error) {
	scope, err := policy.MemberScope(caller)
	if errors.Is(err, policy.ErrNoCaller) {
		return scope, ErrUnauthenticated
	}
	return scope, err
}

// checkUserRole records a validation error unless id is a user holding role.
func checkUserRole(ctx context.Context, db *gorm.DB, id uint, role model.Role, field string, errs form.Errors) error {
	var n int64
	err := db.WithContext(ctx).Model(&model.User{}).Where("id = ? AND role = ?", id, role).Count(&n).Error
	if err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	if n == 0 {
		errs.Add(field, fmt.Sprintf("The selected %s is invalid.", field))
	}
	return nil
}

func preload(q *gorm.DB, relations []string) *gorm.DB {
	for _, r := range relations {
		q = q.Preload(r)
	}
	return q
}

func assign[T any](dst **T, f form.Field[T]) {
	if f.Set {
		*dst = f.Value
	}
}
