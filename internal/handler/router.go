package handler

import (
	"github.com/assacalos/megvie/internal/middleware"
	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/policy"
	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	readOnlyAdmin    = "Accès refusé. L'administrateur est en lecture seule."
	userReadersOnly  = "Accès refusé. Seuls les administrateurs peuvent voir les utilisateurs."
	userManagersOnly = "Accès refusé. Seul le sous-administrateur peut gérer les utilisateurs."
	smsSendersOnly   = "Accès refusé. Droits insuffisants pour envoyer des SMS."
)

type Handlers struct {
	Auth      *AuthHandler
	Members   *MemberHandler
	FollowUps *FollowUpHandler
	Actions   *ActionHandler
	Users     *UserHandler
	Reference *ReferenceHandler
	Sms       *SmsHandler
}

// NewHandlers builds every handler from its service.
func NewHandlers(
	auth *service.AuthService,
	members *service.MemberService,
	followUps *service.FollowUpService,
	actions *service.ActionService,
	users *service.UserService,
	crafts *service.CraftService,
	sms *service.SmsService,
) Handlers {
	return Handlers{
		Auth:      NewAuthHandler(auth),
		Members:   NewMemberHandler(members),
		FollowUps: NewFollowUpHandler(followUps),
		Actions:   NewActionHandler(actions),
		Users:     NewUserHandler(users),
		Reference: NewReferenceHandler(users, crafts),
		Sms:       NewSmsHandler(sms),
	}
}

// Register mounts the /api routes.
func Register(r gin.IRouter, auth *service.AuthService, h Handlers) {
	api := r.Group("/api")
	api.POST("/login", h.Auth.Login)

	authed := api.Group("", middleware.JWTAuth(auth))
	authed.POST("/logout", h.Auth.Logout)
	authed.GET("/user", h.Auth.Me)

	writer := middleware.DenyRoles(readOnlyAdmin, policy.Observers...)
	readers := middleware.RequireRoles(userReadersOnly, policy.UserReaders...)
	managers := middleware.RequireRoles(userManagersOnly, policy.UserManagers...)

	authed.GET("/members", h.Members.List)
	authed.GET("/members/stats", h.Members.Stats)
	authed.GET("/members/export", h.Members.Export)
	authed.GET("/members/:id", h.Members.Show)
	authed.POST("/members", writer, h.Members.Create)
	authed.POST("/members/:id", writer, h.Members.Update)
	authed.PUT("/members/:id", writer, h.Members.Update)
	authed.DELETE("/members/:id", writer, h.Members.Delete)

	authed.POST("/followups", writer, h.FollowUps.Create)
	authed.PUT("/followups/:id", writer, h.FollowUps.Update)
	authed.DELETE("/followups/:id", writer, h.FollowUps.Delete)

	authed.POST("/actions", writer, h.Actions.Create)
	authed.PUT("/actions/:id", writer, h.Actions.Update)
	authed.DELETE("/actions/:id", writer, h.Actions.Delete)

	authed.GET("/users", readers, h.Users.List)
	authed.GET("/users/:id", readers, h.Users.Show)
	authed.POST("/users", managers, h.Users.Create)
	authed.PUT("/users/:id", managers, h.Users.Update)
	authed.DELETE("/users/:id", managers, h.Users.Delete)

	lists := map[string]model.Role{
		"/pastors":         model.RolePastor,
		"/families":        model.RoleFamily,
		"/sponsors":        model.RoleSponsor,
		"/social-services": model.RoleSocialService,
		"/workers":         model.RoleWorker,
	}
	for path, role := range lists {
		authed.GET(path, h.Reference.ListRole(role))
	}
	authed.POST("/pastors", managers, h.Reference.CreateRole(model.RolePastor))
	authed.POST("/families", managers, h.Reference.CreateRole(model.RoleFamily))
	authed.POST("/sponsors", managers, h.Reference.CreateRole(model.RoleSponsor))

	authed.GET("/crafts", h.Reference.ListCrafts)
	authed.POST("/crafts", writer, h.Reference.CreateCraft)
	authed.PUT("/crafts/:id", writer, h.Reference.UpdateCraft)

	authed.POST("/sms/bulk", middleware.RequireRoles(smsSendersOnly, policy.SmsSenders...), h.Sms.Bulk)
}
