package utils

import (
	"os"
	"strconv"
	"time"
)

type AuthConfig struct {
	JWTSecret  string
	JWTIssuer  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("OTAKUHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("OTAKUHUB_JWT_ISSUER")
	if issuer == "" {
		issuer = "otakuhub"
	}

	accessTTL := 15 * time.Minute
	if v := os.Getenv("OTAKUHUB_ACCESS_TTL_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			accessTTL = time.Duration(n) * time.Minute
		}
	}

	refreshTTL := 24 * time.Hour
	if v := os.Getenv("OTAKUHUB_REFRESH_TTL_H"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			refreshTTL = time.Duration(n) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:  secret,
		JWTIssuer:  issuer,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
}

type ServerConfig struct {
	Addr string
}

func LoadServerConfig() ServerConfig {
	addr := os.Getenv("OTAKUHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return ServerConfig{Addr: addr}
}
