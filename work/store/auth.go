package store

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/crypto/bcrypt"

	"xtream-bridge/work/metrics"
)

// nowFunc is swapped out by expiry tests.
var nowFunc = time.Now

// Authenticator answers credential checks against the store. Because bcrypt
// comparison is deliberately slow and IPTV players re-send credentials on
// every request, successfully verified pairs are remembered in memory so
// only the first request of a session pays the bcrypt cost.
type Authenticator struct {
	store    *Store
	verified *xsync.MapOf[string, string]
}

// NewAuthenticator creates an authenticator over the given store.
func NewAuthenticator(s *Store) *Authenticator {
	return &Authenticator{
		store:    s,
		verified: xsync.NewMapOf[string, string](),
	}
}

// Authenticate checks the username/password pair and returns the account on
// success, or nil when the credentials are wrong, the account is disabled,
// or the account has expired.
func (a *Authenticator) Authenticate(username, password string) (*User, error) {
	u, err := a.store.GetUser(username)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.Enabled || u.Expired() {
		metrics.AuthFailures.Inc()
		return nil, nil
	}

	if !a.checkPassword(u, password) {
		metrics.AuthFailures.Inc()
		return nil, nil
	}
	return u, nil
}

func (a *Authenticator) checkPassword(u *User, password string) bool {
	if cached, ok := a.verified.Load(u.Username); ok {
		if subtle.ConstantTimeCompare([]byte(cached), []byte(password)) == 1 {
			return true
		}
		// Password changed or a wrong guess, fall through to the full check.
	}

	var ok bool
	if strings.HasPrefix(u.Password, "$2") {
		ok = bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
	} else {
		ok = subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1
	}
	if ok {
		a.verified.Store(u.Username, password)
	}
	return ok
}

// Forget drops the cached verification for a user. Called after password
// changes so the old password stops working immediately.
func (a *Authenticator) Forget(username string) {
	a.verified.Delete(username)
}

// Expired reports whether the account is past its expiry date. Accounts
// without one never expire.
func (u *User) Expired() bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.IsZero() && u.ExpiresAt.Before(nowFunc())
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
