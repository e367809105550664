package security

import "time"

type TokenClaims struct {
	UserID  int64
	Role    string
	Ver     int64
	Exp     time.Time
	Issuer  string
	Subject string
}
