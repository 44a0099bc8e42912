package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const minPasswordLen = 6

type UserFilter struct {
	Role      string
	FamilleID *uint
}

type UserService struct {
	db       *gorm.DB
	hashCost int
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, hashCost: bcrypt.DefaultCost}
}

// List returns users, optionally restricted to one role. Sponsors come with
// their family, and may be narrowed to one family.
func (s *UserService) List(ctx context.Context, f UserFilter) ([]model.User, error) {
	q := s.db.WithContext(ctx).Model(&model.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Role == string(model.RoleSponsor) {
		if f.FamilleID != nil {
			q = q.Where("famille_id = ?", *f.FamilleID)
		}
		q = q.Preload("Famille")
	}
	users := []model.User{}
	if err := q.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListByRole backs the reference lists (pastors, families, sponsors, ...).
func (s *UserService) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return s.List(ctx, UserFilter{Role: string(role)})
}

func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Preload("Famille").First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *UserService) Create(ctx context.Context, v form.Values) (*model.User, error) {
	errs := form.Errors{}
	role, ok := model.ParseRole(v.Required("role", errs))
	if !ok && !errs.Has("role") {
		errs.Add("role", "The selected role is invalid.")
	}
	return s.create(ctx, role, v, errs)
}

// CreateWithRole creates a user whose role is fixed by the caller, ignoring any role key in v.
func (s *UserService) CreateWithRole(ctx context.Context, role model.Role, v form.Values) (*model.User, error) {
	return s.create(ctx, role, v, form.Errors{})
}

func (s *UserService) create(ctx context.Context, role model.Role, v form.Values, errs form.Errors) (*model.User, error) {
	u := &model.User{Role: role}
	nom := v.Required("nom", errs)
	prenoms := v.Required("prenoms", errs)
	if len([]rune(nom)) > 255 {
		errs.Add("nom", "The nom field must not be greater than 255 characters.")
	}
	if len([]rune(prenoms)) > 255 {
		errs.Add("prenoms", "The prenoms field must not be greater than 255 characters.")
	}
	u.Nom, u.Prenoms = &nom, &prenoms

	if v.Required("email", errs) != "" {
		if email := v.Email("email", errs); email.Value != nil {
			u.Email = *email.Value
		}
	}
	password := v.Required("password", errs)
	if password != "" && len([]rune(password)) < minPasswordLen {
		errs.Add("password", fmt.Sprintf("The password field must be at least %d characters.", minPasswordLen))
	}

	name := v.String("name", 255, errs)
	s.bindProfile(v, u, errs)

	famille := v.ID("famille_id", errs)
	if role == model.RoleSponsor && famille.Value == nil && !errs.Has("famille_id") {
		errs.Add("famille_id", "The famille_id field is required.")
	}
	if role == model.RoleSponsor && famille.Value != nil {
		if err := checkUserRole(ctx, s.db, *famille.Value, model.RoleFamily, "famille_id", errs); err != nil {
			return nil, err
		}
		u.FamilleID = famille.Value
	}

	if u.Email != "" {
		if err := s.checkEmailFree(ctx, u.Email, 0, errs); err != nil {
			return nil, err
		}
	}
	if err := invalid(errs); err != nil {
		return nil, err
	}

	switch {
	case name.Value != nil:
		u.Name = *name.Value
	default:
		u.Name = strings.TrimSpace(nom + " " + prenoms)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.Password = string(hash)

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(u).Error; err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	logger.From(ctx).Info("user.create", "id", u.ID, "role", u.Role)
	return s.Get(ctx, u.ID)
}

// Update applies the keys present in v. Moving a user out of the sponsor
// role detaches it from its family.
func (s *UserService) Update(ctx context.Context, id uint, v form.Values) (*model.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Famille = nil
	errs := form.Errors{}

	for _, key := range []string{"nom", "prenoms", "name"} {
		if !v.Has(key) {
			continue
		}
		val := v.Required(key, errs)
		if len([]rune(val)) > 255 {
			errs.Add(key, fmt.Sprintf("The %s field must not be greater than 255 characters.", key))
		}
		switch key {
		case "nom":
			u.Nom = &val
		case "prenoms":
			u.Prenoms = &val
		case "name":
			u.Name = val
		}
	}
	if v.Has("email") && v.Required("email", errs) != "" {
		if email := v.Email("email", errs); email.Value != nil {
			u.Email = *email.Value
			if err := s.checkEmailFree(ctx, u.Email, u.ID, errs); err != nil {
				return nil, err
			}
		}
	}
	var password string
	if v.Has("password") {
		password = v.Required("password", errs)
		if password != "" && len([]rune(password)) < minPasswordLen {
			errs.Add("password", fmt.Sprintf("The password field must be at least %d characters.", minPasswordLen))
		}
	}
	if v.Has("role") {
		role, ok := model.ParseRole(v.Required("role", errs))
		if !ok && !errs.Has("role") {
			errs.Add("role", "The selected role is invalid.")
		}
		u.Role = role
	}
	s.bindProfile(v, u, errs)

	famille := v.ID("famille_id", errs)
	if famille.Value != nil {
		if err := checkUserRole(ctx, s.db, *famille.Value, model.RoleFamily, "famille_id", errs); err != nil {
			return nil, err
		}
	}
	assign(&u.FamilleID, famille)
	if u.Role != model.RoleSponsor {
		u.FamilleID = nil
	} else if u.FamilleID == nil && !errs.Has("famille_id") {
		errs.Add("famille_id", "The famille_id field is required.")
	}
	if err := invalid(errs); err != nil {
		return nil, err
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.Password = string(hash)
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(u).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	logger.From(ctx).Info("user.update", "id", u.ID, "role", u.Role)
	return s.Get(ctx, u.ID)
}

// Delete removes a user and detaches the members and sponsors that pointed at it.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, col := range []string{"parrain_id", "pasteur_id", "famille_id"} {
			if err := tx.Model(&model.Member{}).Where(col+" = ?", id).Update(col, nil).Error; err != nil {
				return fmt.Errorf("detach members: %w", err)
			}
		}
		if err := tx.Model(&model.User{}).Where("famille_id = ?", id).Update("famille_id", nil).Error; err != nil {
			return fmt.Errorf("detach sponsors: %w", err)
		}
		if err := tx.Delete(&model.User{}, id).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info("user.delete", "id", id)
	return nil
}

func (s *UserService) bindProfile(v form.Values, u *model.User, errs form.Errors) {
	assign(&u.Telephone, v.String("telephone", 255, errs))
	assign(&u.LieuDeResidence, v.String("lieu_de_residence", 255, errs))
	assign(&u.ZoneSuivi, v.String("zone_suivi", 500, errs))
	assign(&u.Description, v.String("description", 0, errs))
	assign(&u.Profession, v.String("profession", 255, errs))
	assign(&u.Entreprise, v.String("entreprise", 255, errs))
}

func (s *UserService) checkEmailFree(ctx context.Context, email string, exceptID uint, errs form.Errors) error {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&n).Error
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		errs.Add("email", "The email has already been taken.")
	}
	return nil
}
