package identity

import (
	"errors"
	"regexp"
	"strings"
)

// User roles carried in JWT claims and on ledger records. Role is always
// assigned explicitly at login time; the NGO_ id prefix is kept only for
// wire compatibility and is never consulted for authorization.
const (
	RoleCitizen = "citizen"
	RoleNGO     = "ngo"
)

const (
	ngoPrefix   = "NGO_"
	gmailPrefix = "GMAIL_"
	gmailDomain = "@gmail.com"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrInvalidEmail      = errors.New("invalid email")
)

// Raw credentials are strictly alphanumeric, so a raw id can never collide
// with an NGO_ or GMAIL_ prefixed one (underscore is not in the class).
var credentialPattern = regexp.MustCompile(`^[A-Za-z0-9]{6,}$`)

// Resolve derives a stable user identifier from a Darpan credential.
// NGO accounts get the NGO_ prefix on their identifier.
func Resolve(rawCredential string, isNGO bool) (string, error) {
	if !credentialPattern.MatchString(rawCredential) {
		return "", ErrInvalidCredential
	}
	if isNGO {
		return ngoPrefix + rawCredential, nil
	}
	return rawCredential, nil
}

// ResolveEmail derives a user identifier from a Gmail address. Only Gmail
// is accepted; the identifier is GMAIL_ plus the local part.
func ResolveEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 || !strings.HasSuffix(strings.ToLower(email), gmailDomain) {
		return "", ErrInvalidEmail
	}
	return gmailPrefix + email[:at], nil
}

// RoleFor maps the login mode to an explicit role.
func RoleFor(isNGO bool) string {
	if isNGO {
		return RoleNGO
	}
	return RoleCitizen
}
