package model

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin         Role = "admin"
	RoleSousAdmin     Role = "sous_admin"
	RolePastor        Role = "pasteur"
	RoleFamily        Role = "famille"
	RoleSponsor       Role = "parrain"
	RoleSocialService Role = "service_social"
	RoleWorker        Role = "travailleur"
)

// Roles lists every role a user account may carry.
var Roles = []Role{RoleAdmin, RoleSousAdmin, RolePastor, RoleFamily, RoleSponsor, RoleSocialService, RoleWorker}

func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

const (
	StatusFidele    = "fidele"
	StatusNouvelAme = "nouvel_ame"
)

type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `json:"name"`
	Nom             *string   `json:"nom"`
	Prenoms         *string   `json:"prenoms"`
	Email           string    `gorm:"size:191;uniqueIndex" json:"email"`
	Password        string    `json:"-"`
	Telephone       *string   `json:"telephone"`
	LieuDeResidence *string   `json:"lieu_de_residence"`
	ZoneSuivi       *string   `gorm:"type:text" json:"zone_suivi"`
	Description     *string   `gorm:"type:text" json:"description"`
	Profession      *string   `json:"profession"`
	Entreprise      *string   `json:"entreprise"`
	Role            Role      `gorm:"size:32;index" json:"role"`
	FamilleID       *uint     `json:"famille_id"`
	Famille         *User     `gorm:"foreignKey:FamilleID;constraint:OnDelete:SET NULL" json:"famille,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Craft is a profession ("corps de métier") a member can be attached to.
type Craft struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Nom         string    `json:"nom"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Member struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Nom                string     `json:"nom"`
	Prenoms            string     `json:"prenoms"`
	TrancheAge         *string    `json:"tranche_age"`
	LieuResidence      *string    `json:"lieu_residence"`
	CommentConnu       *string    `json:"comment_connu"`
	ButVisite          *string    `json:"but_visite"`
	QuiInvite          *string    `json:"qui_invite"`
	FrequenteEglise    *string    `json:"frequente_eglise"`
	SouhaiteAppartenir *bool      `json:"souhaite_appartenir"`
	DateArrivee        *time.Time `gorm:"type:date" json:"date_arrivee"`
	AppartientFamille  *bool      `json:"appartient_famille"`
	Statut             string     `gorm:"size:16;default:nouvel_ame;index" json:"statut"`
	Profession         *string    `json:"profession"`
	Photo              *string    `json:"photo"`
	PhotoURL           *string    `gorm:"-" json:"photo_url"`
	Facebook           *string    `json:"facebook"`
	Contacts           *string    `json:"contacts"`
	Whatsapp           *string    `json:"whatsapp"`
	Instagram          *string    `json:"instagram"`
	Email              *string    `json:"email"`
	ParrainID          *uint      `gorm:"index" json:"parrain_id"`
	PasteurID          *uint      `gorm:"index" json:"pasteur_id"`
	FamilleID          *uint      `gorm:"index" json:"famille_id"`
	FamilleMois        *string    `json:"famille_mois"`
	Formation          *string    `json:"formation"`
	AnneeExperience    *int       `json:"annee_experience"`
	CorpsMetierID      *uint      `gorm:"index" json:"corps_metier_id"`
	BaptiseEau         *bool      `json:"baptise_eau"`
	BaptiseSaintEsprit *bool      `json:"baptise_saint_esprit"`
	CureDAme           *bool      `gorm:"column:cure_d_ame" json:"cure_d_ame"`
	Delivrance         *bool      `json:"delivrance"`
	Mariage            *bool      `json:"mariage"`

	DateMiseAJourPasteur    *time.Time `gorm:"column:date_mise_a_jour_pasteur" json:"date_mise_a_jour_pasteur"`
	DateMiseAJourParrainage *time.Time `gorm:"column:date_mise_a_jour_parrainage" json:"date_mise_a_jour_parrainage"`
	DateMiseAJourSocioPro   *time.Time `gorm:"column:date_mise_a_jour_socio_pro" json:"date_mise_a_jour_socio_pro"`
	DateDerniereMiseAJour   *time.Time `gorm:"column:date_derniere_mise_a_jour" json:"date_derniere_mise_a_jour"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Parrain     *User      `gorm:"foreignKey:ParrainID;constraint:OnDelete:SET NULL" json:"parrain,omitempty"`
	Pasteur     *User      `gorm:"foreignKey:PasteurID;constraint:OnDelete:SET NULL" json:"pasteur,omitempty"`
	Famille     *User      `gorm:"foreignKey:FamilleID;constraint:OnDelete:SET NULL" json:"famille,omitempty"`
	CorpsMetier *Craft     `gorm:"foreignKey:CorpsMetierID;constraint:OnDelete:SET NULL" json:"corps_metier,omitempty"`
	Suivis      []FollowUp `gorm:"foreignKey:FideleID;constraint:OnDelete:CASCADE" json:"suivis,omitempty"`
	Actions     []Action   `gorm:"foreignKey:FideleID;constraint:OnDelete:CASCADE" json:"actions,omitempty"`
}

type FollowUp struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	FideleID      uint      `gorm:"index;not null" json:"fidele_id"`
	Statut        *string   `gorm:"size:32" json:"statut"`
	NatureEchange *string   `gorm:"size:50" json:"nature_echange"`
	MotifEchange  *string   `gorm:"type:text" json:"motif_echange"`
	ResumeEchange *string   `gorm:"type:text" json:"resume_echange"`
	Date          time.Time `gorm:"type:date;not null" json:"date"`
	Observation   *string   `gorm:"type:text" json:"observation"`
	Commentaire   *string   `gorm:"type:text" json:"commentaire"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Fidele        *Member   `gorm:"foreignKey:FideleID" json:"fidele,omitempty"`
}

type Action struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FideleID    uint      `gorm:"index;not null" json:"fidele_id"`
	Type        *string   `gorm:"size:32" json:"type"`
	Date        time.Time `gorm:"type:date;not null" json:"date"`
	Montant     *float64  `gorm:"type:decimal(10,2)" json:"montant"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Fidele      *Member   `gorm:"foreignKey:FideleID" json:"fidele,omitempty"`
}

const (
	SmsSent    = "sent"
	SmsFailed  = "failed"
	SmsPartial = "partial"
)

type SmsLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	Message        string    `gorm:"type:text" json:"message"`
	RecipientCount int       `json:"recipient_count"`
	Status         string    `gorm:"size:50;default:pending" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RevokedToken is a logged-out bearer token, kept until it would have expired anyway.
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;size:64"`
	ExpiresAt time.Time `gorm:"index"`
}

func (Member) TableName() string       { return "fideles" }
func (FollowUp) TableName() string     { return "suivis" }
func (Action) TableName() string       { return "actions" }
func (Craft) TableName() string        { return "corps_metiers" }
func (User) TableName() string         { return "users" }
func (SmsLog) TableName() string       { return "sms_logs" }
func (RevokedToken) TableName() string { return "revoked_tokens" }

// AutoMigrate creates or updates every table the API uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Craft{}, &Member{}, &FollowUp{}, &Action{}, &SmsLog{}, &RevokedToken{})
}
