package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type account struct {
	Nom, Prenoms, Name, Email string
	Role                      model.Role
	Telephone, Residence      string
	Zone, Profession          string
	// FamilyEmail links a sponsor to the family account with that email.
	FamilyEmail string
}

const defaultZone = "abobo, yopougon, port-bouet"

var accounts = []account{
	{Name: "Admin", Email: "admin@megvie.org", Role: model.RoleAdmin},
	{Nom: "LUC-EVRA", Prenoms: "PST", Name: "LUC-EVRA PST", Email: "pasteur@megvie.org", Role: model.RolePastor,
		Telephone: "+225 07 00 00 00 00", Residence: "Abidjan", Zone: defaultZone, Profession: "Pasteur"},
	{Nom: "Sous Admin", Name: "Sous Admin", Email: "sous_admin@megvie.org", Role: model.RoleSousAdmin,
		Telephone: "+225 07 00 00 00 00", Residence: "Abidjan", Zone: defaultZone, Profession: "Sous Admin"},
	{Nom: "Fevrier", Name: "Fevrier", Email: "fevrier@megvie.org", Role: model.RoleFamily,
		Residence: "Abidjan", Zone: "Zone 1", Profession: "Famille"},
	{Nom: "Travailleur", Name: "Travailleur", Email: "travailleur@megvie.org", Role: model.RoleWorker,
		Residence: "Abidjan", Zone: defaultZone, Profession: "Travailleur"},
	{Nom: "Service Social", Name: "Service Social", Email: "service_social@megvie.org", Role: model.RoleSocialService,
		Residence: "Abidjan", Zone: defaultZone, Profession: "Service Social"},
	{Nom: "Parrain Doe", Prenoms: "John", Name: "Parrain Doe", Email: "parrain@megvie.org", Role: model.RoleSponsor,
		Residence: "Abidjan", Zone: defaultZone, Profession: "Parrain", FamilyEmail: "fevrier@megvie.org"},
}

// seedAccounts creates the missing accounts, keyed by email. Existing rows are left alone.
func seedAccounts(ctx context.Context, db *gorm.DB, password string) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	created := 0
	for _, a := range accounts {
		var existing model.User
		err := db.WithContext(ctx).Where("email = ?", a.Email).First(&existing).Error
		if err == nil {
			logger.Debug("account exists", "email", a.Email)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, fmt.Errorf("query %s: %w", a.Email, err)
		}

		u := model.User{
			Name:            a.Name,
			Email:           a.Email,
			Password:        string(hash),
			Role:            a.Role,
			Nom:             text(a.Nom),
			Prenoms:         text(a.Prenoms),
			Telephone:       text(a.Telephone),
			LieuDeResidence: text(a.Residence),
			ZoneSuivi:       text(a.Zone),
			Profession:      text(a.Profession),
		}
		if a.FamilyEmail != "" {
			var fam model.User
			if err := db.WithContext(ctx).Where("email = ? AND role = ?", a.FamilyEmail, model.RoleFamily).First(&fam).Error; err != nil {
				return created, fmt.Errorf("family %s for %s: %w", a.FamilyEmail, a.Email, err)
			}
			u.FamilleID = &fam.ID
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			return created, fmt.Errorf("insert %s: %w", a.Email, err)
		}
		logger.Info("account created", "email", a.Email, "role", a.Role)
		created++
	}
	return created, nil
}

var crafts = []string{"Menuisier", "Maçon", "Couturier", "Mécanicien", "Électricien", "Commerçant", "Enseignant", "Informaticien"}

func seedCrafts(ctx context.Context, db *gorm.DB) (int, error) {
	created := 0
	for _, nom := range crafts {
		res := db.WithContext(ctx).Where(model.Craft{Nom: nom}).FirstOrCreate(&model.Craft{})
		if res.Error != nil {
			return created, fmt.Errorf("craft %s: %w", nom, res.Error)
		}
		created += int(res.RowsAffected)
	}
	return created, nil
}

func text(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
