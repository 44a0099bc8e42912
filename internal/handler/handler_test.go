package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/assacalos/megvie/internal/middleware"
	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/service"
	"github.com/assacalos/megvie/internal/storage"
	"github.com/assacalos/megvie/internal/testutil"
	"github.com/assacalos/megvie/internal/tokens"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type okGateway struct{ sent int }

func (g *okGateway) Send(context.Context, string, string) bool { g.sent++; return true }
func (g *okGateway) IsConfigured() bool                        { return true }

type env struct {
	t      *testing.T
	db     *gorm.DB
	r      *gin.Engine
	auth   *service.AuthService
	dir    string
	tokens map[model.Role]string
	users  map[model.Role]*model.User
}

func newEnv(t *testing.T) *env {
	db := testutil.NewDB(t)
	dir := t.TempDir()
	store, err := storage.NewLocal(dir, "http://localhost/storage")
	require.NoError(t, err)

	auth := service.NewAuthService(db, "handler-secret", 7*24*time.Hour, tokens.NewDBStore(db))
	h := NewHandlers(
		auth,
		service.NewMemberService(db, store),
		service.NewFollowUpService(db),
		service.NewActionService(db),
		service.NewUserService(db),
		service.NewCraftService(db),
		service.NewSmsService(db, &okGateway{}, nil),
	)
	r := gin.New()
	r.Use(middleware.RequestLog())
	Register(r, auth, h)

	e := &env{t: t, db: db, r: r, auth: auth, dir: dir, tokens: map[model.Role]string{}, users: map[model.Role]*model.User{}}
	for _, role := range model.Roles {
		u := testutil.CreateUser(t, db, role, string(role)+"@megvie.test")
		tok, err := auth.Issue(u)
		require.NoError(t, err)
		e.users[role], e.tokens[role] = u, tok
	}
	return e
}

func (e *env) do(method, path string, role model.Role, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[role])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestLoginLogout(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/login", "", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[map[string]any](t, w)
	assert.Contains(t, body["errors"], "email")
	assert.Contains(t, body["errors"], "password")

	w = e.do(http.MethodPost, "/api/login", "", gin.H{"email": "pasteur@megvie.test", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"Les identifiants fournis sont incorrects."}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/login", "", gin.H{"email": "pasteur@megvie.test", "password": testutil.Password})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}](t, w)
	assert.Equal(t, model.RolePastor, login.User.Role)
	assert.NotContains(t, w.Body.String(), "password\":")

	call := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+login.Token)
		rec := httptest.NewRecorder()
		e.r.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/user"))
	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/api/logout"))
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/api/user"))
}

func TestMembers_Unauthenticated(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/api/members", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"Unauthenticated."}`, w.Body.String())
}

func TestMembers_AdminIsReadOnly(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/members", model.RoleAdmin, gin.H{"nom": "Yao", "prenoms": "Ange"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, decode[map[string]any](t, w)["message"], "Accès refusé")

	var n int64
	e.db.Model(&model.Member{}).Count(&n)
	assert.Zero(t, n)

	w = e.do(http.MethodGet, "/api/members", model.RoleAdmin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMembers_CRUD(t *testing.T) {
	e := newEnv(t)
	parrain := e.users[model.RoleSponsor]
	famille := e.users[model.RoleFamily]

	w := e.do(http.MethodPost, "/api/members", model.RoleSousAdmin, gin.H{"nom": "Yao", "prenoms": "Ange", "parrain_id": 9999})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode[map[string]any](t, w)["errors"], "parrain_id")

	w = e.do(http.MethodPost, "/api/members", model.RoleSousAdmin, gin.H{
		"nom": "Yao", "prenoms": "Ange", "parrain_id": parrain.ID, "famille_id": famille.ID,
		"baptise_eau": "1", "date_arrivee": "2025-02-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.Member](t, w)
	require.NotNil(t, created.Parrain)
	assert.Equal(t, parrain.ID, created.Parrain.ID)
	assert.True(t, *created.BaptiseEau)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/members/%d", created.ID), model.RolePastor, `{"famille_id":""}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Nil(t, body["famille_id"])

	w = e.do(http.MethodGet, fmt.Sprintf("/api/members/%d", created.ID), model.RoleSponsor, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, fmt.Sprintf("/api/members/%d", created.ID), model.RoleFamily, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/followups", model.RoleSousAdmin, gin.H{"fidele_id": created.ID, "date": "2025-02-03", "statut": "confirme"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(http.MethodPost, "/api/actions", model.RoleSocialService, gin.H{"fidele_id": created.ID, "date": "2025-02-04", "type": "action_sociale", "montant": 15000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodGet, "/api/members/stats", model.RoleFamily, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":1,"fideles":0,"nouvelles_ames":1,"baptises":1,"suivis":1,"sans_famille":1,"sans_parrain":0,"sans_pasteur":1}`, w.Body.String())

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/members/%d", created.ID), model.RoleSousAdmin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodDelete, fmt.Sprintf("/api/members/%d", created.ID), model.RoleSousAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMembers_ListPage(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 25; i++ {
		testutil.CreateMember(t, e.db, fmt.Sprintf("M%02d", i))
	}

	w := e.do(http.MethodGet, "/api/members?page=1&tranche_age=tous", model.RoleSocialService, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[model.Page[model.Member]](t, w)
	assert.Len(t, page.Data, 20)
	assert.EqualValues(t, 25, page.Total)
	assert.Equal(t, 2, page.LastPage)

	w = e.do(http.MethodGet, "/api/members?date_debut=yesterday", model.RoleSousAdmin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = e.do(http.MethodGet, "/api/members", model.RoleWorker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[model.Page[model.Member]](t, w).Data)
}

func TestMembers_MultipartPhoto(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("nom", "Kra"))
	require.NoError(t, mw.WriteField("prenoms", "Jean"))
	require.NoError(t, mw.WriteField("souhaite_appartenir", "true"))
	fw, err := mw.CreateFormFile("photo", "portrait.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/members", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.tokens[model.RolePastor])
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	m := decode[model.Member](t, w)
	require.NotNil(t, m.Photo)
	assert.True(t, strings.HasPrefix(*m.Photo, "photos/"))
	assert.Equal(t, "http://localhost/storage/"+*m.Photo, *m.PhotoURL)
	_, err = os.Stat(filepath.Join(e.dir, filepath.FromSlash(*m.Photo)))
	assert.NoError(t, err)

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/members/%d", m.ID), model.RolePastor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, err = os.Stat(filepath.Join(e.dir, filepath.FromSlash(*m.Photo)))
	assert.True(t, os.IsNotExist(err))
}

func TestUsersAndReference(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/users", model.RolePastor, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodGet, "/api/users?role=famille", model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.User](t, w), 1)

	newUser := gin.H{"nom": "Ouattara", "prenoms": "Paul", "email": "paul@megvie.test", "password": "secret1", "role": "pasteur"}
	w = e.do(http.MethodPost, "/api/users", model.RoleAdmin, newUser)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/pastors", model.RoleSousAdmin, newUser)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, model.RolePastor, decode[model.User](t, w).Role)

	w = e.do(http.MethodGet, "/api/pastors", model.RoleFamily, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.User](t, w), 2)

	w = e.do(http.MethodGet, "/api/social-services", model.RoleFamily, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.User](t, w), 1)

	w = e.do(http.MethodPost, "/api/crafts", model.RoleAdmin, gin.H{"nom": "Maçon"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(http.MethodPost, "/api/crafts", model.RoleSocialService, gin.H{"nom": "Maçon"})
	require.Equal(t, http.StatusCreated, w.Code)
	craft := decode[model.Craft](t, w)
	w = e.do(http.MethodPut, fmt.Sprintf("/api/crafts/%d", craft.ID), model.RoleSocialService, gin.H{"description": "Bâtiment"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bâtiment", *decode[model.Craft](t, w).Description)
}

func TestSmsBulk(t *testing.T) {
	e := newEnv(t)
	a := testutil.CreateMember(t, e.db, "A", func(m *model.Member) { m.Contacts = testutil.Ptr("0707") })
	b := testutil.CreateMember(t, e.db, "B")

	w := e.do(http.MethodPost, "/api/sms/bulk", model.RoleFamily, gin.H{"member_ids": []uint{a.ID}, "message": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/sms/bulk", model.RolePastor, gin.H{"member_ids": []uint{a.ID, b.ID}, "message": "Bonjour"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Envoi terminé.","recipient_count":1,"sent":1,"failed":0,"status":"sent","skipped_no_phone":1}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/sms/bulk", model.RoleSousAdmin, `{"member_ids":"oops"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
