package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"anoa.com/classboard/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DeviceCookie      = "classboard_device"
	DeviceTokenHeader = "X-Device-Token"
	deviceIssuer      = "classboard"
)

// DeviceMiddleware gives every browser a signed device id. The id selects
// the device's workspace; it is not a login.
type DeviceMiddleware struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewDeviceMiddleware(secret string, ttl time.Duration, secure bool) *DeviceMiddleware {
	return &DeviceMiddleware{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

func (m *DeviceMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID, err := m.parse(tokenFrom(c))
		if err != nil {
			deviceID = uuid.NewString()
			token, err := m.Issue(deviceID)
			if err != nil {
				log.Printf("[device] issue token: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not issue device token"})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(DeviceCookie, token, int(m.ttl.Seconds()), "/", "", m.secure, true)
			c.Header(DeviceTokenHeader, token)
		}

		c.Set(response.DeviceIDKey, deviceID)
		c.Next()
	}
}

// Issue signs a token for deviceID.
func (m *DeviceMiddleware) Issue(deviceID string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   deviceID,
		Issuer:    deviceIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *DeviceMiddleware) parse(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("no device token")
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(deviceIssuer), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid device token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("invalid device token claims")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid device id: %w", err)
	}
	return claims.Subject, nil
}

// tokenFrom checks the cookie, then a Bearer header, then ?token= (used by
// websocket clients).
func tokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(DeviceCookie); err == nil && cookie != "" {
		return cookie
	}
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.Query("token")
}
