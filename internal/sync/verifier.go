package sync

import (
	"context"
	"crypto/subtle"
)

// StaticVerifier authenticates against a single configured credential.
// Deployments with a real user directory plug their own CredentialVerifier
// in its place.
type StaticVerifier struct {
	Username string
	Password string

	// AllowRegister and AllowPackage grant the corresponding capability
	// to the configured user.
	AllowRegister bool
	AllowPackage  bool
}

func (v *StaticVerifier) Authenticate(_ context.Context, username, password string) (bool, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.Password)) == 1
	return userOK && passOK, nil
}

func (v *StaticVerifier) CanRegisterComputers(ctx context.Context, username string) (bool, error) {
	if username != v.Username {
		return false, nil
	}
	return v.AllowRegister, nil
}

func (v *StaticVerifier) CanPackage(ctx context.Context, username string) (bool, error) {
	if username != v.Username {
		return false, nil
	}
	return v.AllowPackage, nil
}
