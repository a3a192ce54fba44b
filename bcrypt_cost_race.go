//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// race builds run the sign in tests under tight timeouts
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
