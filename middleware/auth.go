package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/oceanvince/mangxia/util"
)

var errMissingToken = errors.New("missing bearer token")

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(token), nil
}

// parseDoctorToken verifies an HS256 token signed with the configured secret and
// returns its subject, the doctor id.
func parseDoctorToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		secret := util.GetJWTSecretByte()
		if len(secret) == 0 {
			return nil, errors.New("jwt secret is not configured")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// RequireDoctor guards clinician-only routes. Token issuance happens elsewhere;
// this only verifies. When enabled is false every request passes unauthenticated.
func RequireDoctor(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		raw, err := bearerToken(c)
		if err != nil {
			util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Unauthorized", Err: err})
			c.Abort()
			return
		}
		doctorID, err := parseDoctorToken(raw)
		if err != nil {
			util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Invalid or expired token", Err: err})
			c.Abort()
			return
		}

		c.Set(DoctorIDKey, doctorID)
		c.Next()
	}
}
