package auth

import (
	"crypto/md5"
	"encoding/hex"
)

const gravatarBaseURL = "//www.gravatar.com/avatar/"

// GravatarURL derives the default avatar for email. The address is
// normalized first so the hash matches what gravatar.com expects.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(NormalizeEmail(email)))
	return gravatarBaseURL + hex.EncodeToString(sum[:])
}
