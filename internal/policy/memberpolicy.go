// Package policy decides which members a caller may see and which roles may change data.
//
// Visibility rules:
//   - admin, sous_admin and service_social see every member
//   - famille sees members whose famille_id is the caller
//   - parrain sees members whose parrain_id is the caller
//   - pasteur sees members assigned to them, plus members living in one of the
//     localities listed in their zone_suivi
//   - travailleur sees no member
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/normalize"
	"gorm.io/gorm"
)

var ErrNoCaller = errors.New("no authenticated caller")

type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeAll
	ScopeFamily
	ScopeSponsor
	ScopePastor
)

// Scope is the subset of members a caller is allowed to see.
type Scope struct {
	Kind     ScopeKind
	CallerID uint
	// Zones holds the pastor's lower-cased locality tokens.
	Zones []string
}

// MemberScope computes the visibility scope for caller. Every role is handled
// explicitly; an unrecognised role is an error rather than a silent default.
func MemberScope(caller *model.User) (Scope, error) {
	if caller == nil {
		return Scope{}, ErrNoCaller
	}
	switch caller.Role {
	case model.RoleAdmin, model.RoleSousAdmin, model.RoleSocialService:
		return Scope{Kind: ScopeAll}, nil
	case model.RoleFamily:
		return Scope{Kind: ScopeFamily, CallerID: caller.ID}, nil
	case model.RoleSponsor:
		return Scope{Kind: ScopeSponsor, CallerID: caller.ID}, nil
	case model.RolePastor:
		return Scope{Kind: ScopePastor, CallerID: caller.ID, Zones: normalize.ZoneTokens(caller.ZoneSuivi)}, nil
	case model.RoleWorker:
		return Scope{Kind: ScopeNone}, nil
	}
	return Scope{}, fmt.Errorf("unknown role %q", caller.Role)
}

// Apply narrows a query on the fideles table to the scope.
func (s Scope) Apply(q *gorm.DB) *gorm.DB {
	switch s.Kind {
	case ScopeAll:
		return q
	case ScopeFamily:
		return q.Where("fideles.famille_id = ?", s.CallerID)
	case ScopeSponsor:
		return q.Where("fideles.parrain_id = ?", s.CallerID)
	case ScopePastor:
		cond := q.Session(&gorm.Session{NewDB: true}).Where("fideles.pasteur_id = ?", s.CallerID)
		for _, z := range s.Zones {
			cond = cond.Or("LOWER(fideles.lieu_residence) LIKE ? ESCAPE '!'", ContainsPattern(z))
		}
		return q.Where(cond)
	}
	return q.Where("1 = 0")
}

// Allows reports whether a single member falls inside the scope.
func (s Scope) Allows(m *model.Member) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeFamily:
		return m.FamilleID != nil && *m.FamilleID == s.CallerID
	case ScopeSponsor:
		return m.ParrainID != nil && *m.ParrainID == s.CallerID
	case ScopePastor:
		if m.PasteurID != nil && *m.PasteurID == s.CallerID {
			return true
		}
		if m.LieuResidence == nil {
			return false
		}
		res := strings.ToLower(*m.LieuResidence)
		for _, z := range s.Zones {
			if strings.Contains(res, z) {
				return true
			}
		}
	}
	return false
}

// ContainsPattern builds a LIKE pattern matching any value containing s
// (lower-cased), escaping wildcards with '!'. Callers compare it against
// LOWER(column). MySQL folds the column with its utf8mb4 collation; SQLite's
// built-in LOWER only folds ASCII, so there "ÉLODIE" is not found by "élodie".
func ContainsPattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
