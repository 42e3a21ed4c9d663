// Package dao holds the persisted entities of the DeliciousFood server and
// their bindings into the generic data-access layer.
package dao

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Policy is a bitmask of the permission groups a user belongs to.
type Policy int

const (
	PolicyNone Policy = 0

	// PolicyUsers may CRUD their own food records.
	PolicyUsers Policy = 1

	// PolicyModerators may CRUD users only.
	PolicyModerators Policy = 2

	// PolicyAdmins may CRUD any entity.
	PolicyAdmins Policy = 4
)

// AllPolicies lists every individual policy bit, in ascending order.
var AllPolicies = []Policy{PolicyUsers, PolicyModerators, PolicyAdmins}

func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "None"
	case PolicyUsers:
		return "Users"
	case PolicyModerators:
		return "Moderators"
	case PolicyAdmins:
		return "Admins"
	}

	var names []string
	for _, single := range AllPolicies {
		if p.Intersects(single) {
			names = append(names, single.String())
		}
	}
	return strings.Join(names, ", ")
}

// Intersects returns whether the two masks share at least one policy bit.
func (p Policy) Intersects(other Policy) bool {
	return p&other != PolicyNone
}

// ParsePolicy converts a single policy name back to its bit.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "users":
		return PolicyUsers, nil
	case "moderators":
		return PolicyModerators, nil
	case "admins":
		return PolicyAdmins, nil
	default:
		return PolicyNone, fmt.Errorf("unknown policy %q", s)
	}
}

// FoodType says which meal a food record belongs to.
type FoodType int

const (
	Breakfast FoodType = iota + 1
	Lunch
	Dinner
	Snack
)

func (t FoodType) String() string {
	switch t {
	case Breakfast:
		return "Breakfast"
	case Lunch:
		return "Lunch"
	case Dinner:
		return "Dinner"
	case Snack:
		return "Snack"
	default:
		return fmt.Sprintf("FoodType(%d)", int(t))
	}
}

// Valid returns whether t is one of the defined meal types.
func (t FoodType) Valid() bool {
	return t >= Breakfast && t <= Snack
}

// Timestamp is a time.Time variation that stores itself in the DB as the
// number of seconds since the Unix epoch.
type Timestamp time.Time

// NowTimestamp returns the current time as a Timestamp.
func NowTimestamp() Timestamp {
	return Timestamp(time.Now())
}

func (ts Timestamp) Value() (driver.Value, error) {
	return time.Time(ts).Unix(), nil
}

func (ts *Timestamp) Scan(value interface{}) error {
	iVal, ok := value.(int64)
	if !ok {
		return fmt.Errorf("not an integer value: %v", value)
	}

	*ts = Timestamp(time.Unix(iVal, 0))
	return nil
}

func (ts Timestamp) Time() time.Time {
	return time.Time(ts)
}

// User is a registered account. PolicyMask controls what the user may do.
type User struct {
	ID           int
	Login        string
	PasswordHash string
	Name         string
	PolicyMask   Policy
}

func (u *User) EntityID() int      { return u.ID }
func (u *User) SetEntityID(id int) { u.ID = id }

// Food is one food record owned by a user. Public records are visible to all
// users and can be marked as delicious.
type Food struct {
	ID               int
	UserID           int
	Title            string
	Type             FoodType
	NumberOfCalories float64
	Country          string
	IsPublic         bool
}

func (f *Food) EntityID() int      { return f.ID }
func (f *Food) SetEntityID(id int) { f.ID = id }

// UserDeliciousFood marks one public food record as delicious for one user.
// It is a sub-entity of both User and Food; each relation is declared
// separately.
type UserDeliciousFood struct {
	ID     int
	UserID int
	FoodID int
}

func (d *UserDeliciousFood) EntityID() int      { return d.ID }
func (d *UserDeliciousFood) SetEntityID(id int) { d.ID = id }

// RefreshToken is a stored refresh token for one user session. It is used to
// mint new access tokens until LifeTime passes.
type RefreshToken struct {
	ID         int
	UserID     int
	Token      string
	CreateTime Timestamp
	LifeTime   Timestamp
}

func (t *RefreshToken) EntityID() int      { return t.ID }
func (t *RefreshToken) SetEntityID(id int) { t.ID = id }
