package auth

import "errors"

var (
	// ErrInvalidCredentials indicates the username or password is wrong.
	// Deliberately indistinguishable between the two.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidHash indicates the stored hash is not a valid argon2id
	// PHC string.
	ErrInvalidHash = errors.New("auth: invalid password hash")

	// ErrInvalidToken indicates the JWT failed validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)
