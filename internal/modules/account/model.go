// README: Accounts: ride requesters, chair owners and payment tokens.
package account

import (
	"time"

	"rideon/internal/types"
)

type User struct {
	ID             types.ID
	Username       string
	Firstname      string
	Lastname       string
	DateOfBirth    string
	AccessToken    string
	InvitationCode string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Owner struct {
	ID                 types.ID
	Name               string
	AccessToken        string
	ChairRegisterToken string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
