package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-quota/errcode"
	"github.com/KOMKZ/go-yogan-quota/httpx"
	"github.com/KOMKZ/go-yogan-quota/middleware"
	"github.com/KOMKZ/go-yogan-quota/quota"
)

// userHeader trusted upstream header carrying the authenticated user id
const userHeader = "X-User-ID"

// demoPassword every demo account shares it
const demoPassword = "demo"

// demoConfig "demo" section
type demoConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

var ErrInvalidCredentials = errcode.Register(errcode.New(44, 1, "demo", "INVALID_CREDENTIALS",
	"Invalid email or password", http.StatusUnauthorized))

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type LoginResp struct {
	Email string `json:"email"`
}

type PasswordResetReq struct {
	Email string `json:"email"`
}

func (r *PasswordResetReq) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Email, validation.Required))
}

type PasswordResetResp struct {
	Sent bool `json:"sent"`
}

type ResourcesReq struct{}

type ResourcesResp struct {
	Items []string `json:"items"`
}

type AnalysisReq struct {
	Text string `json:"text"`
}

type AnalysisResp struct {
	Words int `json:"words"`
}

type CompletionReq struct {
	Prompt string `json:"prompt"`
}

func (r *CompletionReq) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Prompt, validation.Required))
}

type CompletionResp struct {
	Text string `json:"text"`
}

// registerDemoRoutes one route behind each specialized policy
//
//	POST /auth/login           auth, by client IP
//	POST /auth/password-reset  password_reset, by email
//	GET  /resources            api, by user
//	POST /analysis             analysis, by user
//	POST /ai/complete          ai_minute + ai_hour, by user
//
// Per-user routes key by a verified bearer subject when jwtSecret is set, then by the X-User-ID header.
func registerDemoRoutes(router gin.IRouter, q *quota.Component, jwtSecret string) {
	policies := q.Policies()
	byUser := middleware.KeyByHeader(userHeader)
	if jwtSecret != "" {
		byUser = middleware.KeyByBearer([]byte(jwtSecret), byUser)
	}

	router.POST("/auth/login",
		middleware.Quota(policies.Auth, middleware.QuotaConfig{Enabled: q.Enabled, KeyFunc: middleware.KeyByIP}),
		httpx.Wrap(login))
	router.POST("/auth/password-reset",
		middleware.Quota(policies.PasswordReset, middleware.QuotaConfig{Enabled: q.Enabled, KeyFunc: middleware.KeyByForm("email")}),
		httpx.Wrap(passwordReset))
	router.GET("/resources",
		middleware.Quota(policies.API, middleware.QuotaConfig{Enabled: q.Enabled, KeyFunc: byUser}),
		httpx.Wrap(listResources))
	router.POST("/analysis",
		middleware.Quota(policies.Analysis, middleware.QuotaConfig{Enabled: q.Enabled, KeyFunc: byUser}),
		httpx.Wrap(analyze))
	router.POST("/ai/complete",
		middleware.Quota(policies.AI, middleware.QuotaConfig{Enabled: q.Enabled, KeyFunc: byUser}),
		httpx.Wrap(complete))
}

func login(c *gin.Context, req *LoginReq) (*LoginResp, error) {
	if req.Password != demoPassword {
		return nil, ErrInvalidCredentials
	}
	return &LoginResp{Email: quota.NormalizeEmail(req.Email)}, nil
}

func passwordReset(c *gin.Context, req *PasswordResetReq) (*PasswordResetResp, error) {
	return &PasswordResetResp{Sent: true}, nil
}

func listResources(c *gin.Context, req *ResourcesReq) (*ResourcesResp, error) {
	return &ResourcesResp{Items: []string{"alpha", "beta", "gamma"}}, nil
}

func analyze(c *gin.Context, req *AnalysisReq) (*AnalysisResp, error) {
	return &AnalysisResp{Words: len(strings.Fields(req.Text))}, nil
}

func complete(c *gin.Context, req *CompletionReq) (*CompletionResp, error) {
	return &CompletionResp{Text: strings.ToUpper(req.Prompt)}, nil
}
