package site

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kdhira/loginzap/internal/loginevent"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Account is a site user allowed to log in.
type Account struct {
	ID           int64  `json:"id" yaml:"id"`
	Username     string `json:"username" yaml:"username"`
	Email        string `json:"email" yaml:"email"`
	PasswordHash string `json:"password_hash" yaml:"password_hash"`
}

// Directory authenticates accounts by username or email.
type Directory struct {
	byLogin map[string]Account
	count   int
}

// NewDirectory indexes accounts. Usernames and emails must be unique,
// compared case-insensitively.
func NewDirectory(accounts []Account) (*Directory, error) {
	d := &Directory{byLogin: make(map[string]Account, len(accounts)*2)}
	for _, a := range accounts {
		if a.Username == "" {
			return nil, fmt.Errorf("account %d has no username", a.ID)
		}
		if _, err := bcrypt.Cost([]byte(a.PasswordHash)); err != nil {
			return nil, fmt.Errorf("account %s: invalid password hash: %w", a.Username, err)
		}
		for _, key := range []string{a.Username, a.Email} {
			if key == "" {
				continue
			}
			key = strings.ToLower(key)
			if _, dup := d.byLogin[key]; dup {
				return nil, fmt.Errorf("duplicate login %q", key)
			}
			d.byLogin[key] = a
		}
		d.count++
	}
	return d, nil
}

// Authenticate checks password for the account identified by login.
func (d *Directory) Authenticate(login, password string) (loginevent.User, error) {
	a, ok := d.byLogin[strings.ToLower(strings.TrimSpace(login))]
	if !ok {
		return loginevent.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return loginevent.User{}, ErrInvalidCredentials
	}
	return loginevent.User{ID: a.ID, Username: a.Username, Email: a.Email}, nil
}

// Len reports the number of accounts.
func (d *Directory) Len() int { return d.count }
