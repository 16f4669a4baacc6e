package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleCustomer — обычный покупатель: свои заказы, свои рецепты.
	RoleCustomer = "customer"
	// RoleAdmin — оператор аптеки: списки, статусы, проверка рецептов.
	RoleAdmin = "admin"
)

const principalKey = "rest.principal"

// Principal — аутентифицированный субъект запроса.
type Principal struct {
	UserID string
	Role   string
}

// IsAdmin сообщает, обладает ли субъект административными правами.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// AuthConfig задаёт параметры проверки и выпуска JWT.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TokenTTL time.Duration
	// Clients — статически сконфигурированные клиенты для POST /v1/token.
	Clients map[string]Client
}

// Client — учётные данные клиента API.
type Client struct {
	Secret string
	UserID string
	Role   string
}

// Auth проверяет bearer-токены на защищённых маршрутах.
type Auth struct {
	cfg AuthConfig
}

// NewAuth создаёт middleware аутентификации.
func NewAuth(cfg AuthConfig) *Auth {
	return &Auth{cfg: cfg}
}

// Require пропускает только запросы с валидным JWT и одной из ролей.
// Пустой список ролей означает «любой аутентифицированный».
func (a *Auth) Require(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c, "missing bearer token")
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(a.cfg.Secret), nil
		}, jwt.WithLeeway(30*time.Second))
		if err != nil || !token.Valid {
			unauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(c, "invalid claims")
			return
		}
		if claims["iss"] != a.cfg.Issuer || claims["aud"] != a.cfg.Audience {
			unauthorized(c, "iss/aud mismatch")
			return
		}

		principal := Principal{}
		if sub, ok := claims["sub"].(string); ok {
			principal.UserID = sub
		}
		if role, ok := claims["role"].(string); ok {
			principal.Role = role
		}
		if principal.UserID == "" || principal.Role == "" {
			unauthorized(c, "sub/role claims are required")
			return
		}

		if len(roles) > 0 && !contains(roles, principal.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: errorBody{
				Kind:    "forbidden",
				Message: "insufficient role",
			}})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// principalFrom извлекает субъекта, положенного Require.
func principalFrom(c *gin.Context) Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}
	}
	p, _ := v.(Principal)
	return p
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorBody{
		Kind:    "unauthorized",
		Message: message,
	}})
}
