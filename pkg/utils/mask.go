package utils

import "regexp"

// Redis and postgres connection strings show up in startup logs; the
// password between "user:" and "@" must not. The user part may be empty
// (redis://:pass@host form).
var dsnPassword = regexp.MustCompile(`//([^:@/]*):([^@]+)@`)

// MaskDSN replaces the password portion of a connection string with a
// fixed placeholder, leaving user and host readable.
func MaskDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, "//$1:****@")
}
