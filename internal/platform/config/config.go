package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration for the trust node.
type Server struct {
	Addr                 string
	IssuerDID            string
	DatabaseURL          string
	ChallengeTTL         time.Duration
	TransferMinimumScore float64
	RevocationListSlots  uint64
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                 ":8080",
		IssuerDID:            "did:web:registrar.example.edu",
		ChallengeTTL:         5 * time.Minute,
		TransferMinimumScore: 2.0,
		RevocationListSlots:  131072,
	}

	if addr := os.Getenv("ACCREDO_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if did := os.Getenv("ACCREDO_ISSUER_DID"); did != "" {
		cfg.IssuerDID = did
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if ttl := os.Getenv("CHALLENGE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.ChallengeTTL = d
		}
	}
	if raw := os.Getenv("TRANSFER_MIN_SCORE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
			cfg.TransferMinimumScore = v
		}
	}
	if raw := os.Getenv("REVOCATION_LIST_SLOTS"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
			cfg.RevocationListSlots = v
		}
	}

	return cfg
}
