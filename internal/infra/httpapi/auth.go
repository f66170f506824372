package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	CookieName    = "profitbook_token"
	tokenIssuer   = "exchange-profitbook"
	tokenAudience = "exchange-profitbook-app"
	tokenSubject  = "admin"

	// Login attempts refill at one per second with a burst of five, per client IP.
	loginBurst = 5

	// The limiter table is dropped when it grows past this many clients.
	maxLoginClients = 4096
)

// Authenticator guards the API with a single shared password. A successful
// login yields an HS256 token accepted from the Authorization header or the cookie.
type Authenticator struct {
	password     string
	secret       []byte
	ttl          time.Duration
	secureCookie bool
	logger       *logrus.Entry
	now          func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewAuthenticator(password, secret string, ttl time.Duration, secureCookie bool, logger *logrus.Entry) *Authenticator {
	return &Authenticator{
		password:     password,
		secret:       []byte(secret),
		ttl:          ttl,
		secureCookie: secureCookie,
		logger:       logger.WithField("component", "auth"),
		now:          time.Now,
		limiters:     make(map[string]*rate.Limiter),
	}
}

func (a *Authenticator) loginLimiter(clientIP string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[clientIP]
	if !ok {
		if len(a.limiters) >= maxLoginClients {
			a.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rate.Every(time.Second), loginBurst)
		a.limiters[clientIP] = l
	}
	return l
}

// IssueToken signs a token valid for the configured TTL.
func (a *Authenticator) IssueToken() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenSubject,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates signature, issuer, audience and expiry.
func (a *Authenticator) ParseToken(tokenStr string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Middleware rejects requests without a valid token.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			if cookie, err := c.Cookie(CookieName); err == nil {
				tokenStr = cookie
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if _, err := a.ParseToken(tokenStr); err != nil {
			a.logger.WithError(err).WithField("client_ip", c.ClientIP()).Debug("Rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (a *Authenticator) login(c *gin.Context) {
	if !a.loginLimiter(c.ClientIP()).Allow() {
		a.logger.WithField("client_ip", c.ClientIP()).Warn("Login throttled")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts, try again later"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Password is required"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.password)) != 1 {
		a.logger.WithField("client_ip", c.ClientIP()).Warn("Failed login attempt")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}

	token, err := a.IssueToken()
	if err != nil {
		a.logger.WithError(err).Error("Failed to sign token")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(a.ttl/time.Second), "/", "", a.secureCookie, true)
	a.logger.WithField("client_ip", c.ClientIP()).Info("Logged in")
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (a *Authenticator) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", a.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
