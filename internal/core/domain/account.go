package domain

import "time"

// Account models a registered user of the gate.
type Account struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	PasswordHash       string    `json:"-"`
	SecondFactorSecret string    `json:"-"`
	IsAdmin            bool      `json:"is_admin"`
	CreatedAt          time.Time `json:"created_at"`
}

// HasSecondFactor reports whether the account enrolled a one-time code secret.
func (a *Account) HasSecondFactor() bool {
	return a.SecondFactorSecret != ""
}
