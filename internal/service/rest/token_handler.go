package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// TokenHandler выпускает JWT для статически сконфигурированных клиентов.
type TokenHandler struct {
	cfg AuthConfig
}

// NewTokenHandler создаёт обработчик выпуска токенов.
func NewTokenHandler(cfg AuthConfig) *TokenHandler {
	return &TokenHandler{cfg: cfg}
}

type tokenRequest struct {
	ClientID     string `json:"client_id" form:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" form:"client_secret" binding:"required"`
}

// IssueToken обрабатывает POST /v1/token: принимает client_id/client_secret
// (JSON или form) и возвращает подписанный HS256 токен с ролью клиента.
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: errorBody{
			Kind:    "unauthorized",
			Message: "client_id and client_secret are required",
		}})
		return
	}

	client, ok := h.cfg.Clients[req.ClientID]
	if !ok || client.Secret == "" || client.Secret != req.ClientSecret {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: errorBody{
			Kind:    "unauthorized",
			Message: "invalid client credentials",
		}})
		return
	}

	ttl := h.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  h.cfg.Issuer,
		"aud":  h.cfg.Audience,
		"sub":  client.UserID,
		"role": client.Role,
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.Secret))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int64(ttl.Seconds()),
	})
}
