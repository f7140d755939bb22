package domain

import "time"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
	RoleVisitor Role = "VISITOR"
)

// GuestID is the fixed identifier of the browse-only guest profile.
const GuestID = "guest"

// User is the session principal. Trial and guest flags are mutually
// meaningful only for students and visitors.
type User struct {
	ID                  string     `json:"id"`
	Phone               string     `json:"phone"`
	Name                string     `json:"name"`
	Role                Role       `json:"role"`
	SubscriptionEndDate *time.Time `json:"subscriptionEndDate,omitempty"`
	JoinedAt            time.Time  `json:"joinedAt"`
	IsTrial             bool       `json:"isTrial,omitempty"`
	TrialStartDate      *time.Time `json:"trialStartDate,omitempty"`
	IsGuest             bool       `json:"isGuest,omitempty"`
	IsAnonymousTrial    bool       `json:"isAnonymousTrial,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Clone returns a deep copy, including the date pointers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}

	c := *u
	if u.SubscriptionEndDate != nil {
		end := *u.SubscriptionEndDate
		c.SubscriptionEndDate = &end
	}
	if u.TrialStartDate != nil {
		start := *u.TrialStartDate
		c.TrialStartDate = &start
	}

	return &c
}

// GuestUser builds the browse-only visitor profile.
func GuestUser(now time.Time) *User {
	return &User{
		ID:       GuestID,
		Phone:    "0000000000",
		Name:     "زائر المنصة",
		Role:     RoleVisitor,
		JoinedAt: now,
		IsGuest:  true,
	}
}
