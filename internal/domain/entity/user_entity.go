package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnonymousName is the display name used when a user has no username, profile name or email.
const AnonymousName = "Anonymous"

// User is the aggregate root for the account domain.
// Password holds a bcrypt hash and is never published.
type User struct {
	ID        string
	Username  string
	Emails    []Email
	Password  string `json:"-"`
	Profile   Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Email struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

// Profile is stored as a single JSON document so partial updates can merge keys atomically.
type Profile struct {
	Name                string               `json:"name,omitempty"`
	Bio                 string               `json:"bio,omitempty"`
	Avatar              string               `json:"avatar,omitempty"`
	IsVerified          bool                 `json:"isVerified"`
	VerifiedAt          *time.Time           `json:"verifiedAt,omitempty"`
	VerificationMethod  string               `json:"verificationMethod,omitempty"`
	VerificationDetails *VerificationDetails `json:"verificationDetails,omitempty"`
	CreatedAt           *time.Time           `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time           `json:"updatedAt,omitempty"`
}

// VerificationDetails records the payment that verified an account.
type VerificationDetails struct {
	TransactionID string          `json:"transactionId"`
	Plan          string          `json:"plan"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
}

func (u *User) DocumentID() string { return u.ID }

// PrimaryEmail returns the first email address or nil.
func (u *User) PrimaryEmail() *Email {
	if len(u.Emails) == 0 {
		return nil
	}
	return &u.Emails[0]
}

// DisplayName resolves the name snapshot stored on posts, comments and messages:
// username, then profile name, then first email address, then AnonymousName.
func (u *User) DisplayName() string {
	if u == nil {
		return AnonymousName
	}
	if u.Username != "" {
		return u.Username
	}
	if u.Profile.Name != "" {
		return u.Profile.Name
	}
	if e := u.PrimaryEmail(); e != nil && e.Address != "" {
		return e.Address
	}
	return AnonymousName
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Emails = append([]Email(nil), u.Emails...)
	if u.Profile.VerifiedAt != nil {
		t := *u.Profile.VerifiedAt
		c.Profile.VerifiedAt = &t
	}
	if u.Profile.VerificationDetails != nil {
		d := *u.Profile.VerificationDetails
		c.Profile.VerificationDetails = &d
	}
	if u.Profile.CreatedAt != nil {
		t := *u.Profile.CreatedAt
		c.Profile.CreatedAt = &t
	}
	if u.Profile.UpdatedAt != nil {
		t := *u.Profile.UpdatedAt
		c.Profile.UpdatedAt = &t
	}
	return &c
}
