package dao

import (
	"database/sql"

	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/db/sqlite"
)

// UserBinding describes User to the generic data-access layer.
var UserBinding = db.Binding[*User]{
	Name:    "User",
	Table:   "users",
	Columns: []string{"login", "password_hash", "name", "policy_mask"},
	Fields: map[string]string{
		"id":         "id",
		"login":      "login",
		"name":       "name",
		"policymask": "policy_mask",
	},
	New: func() *User { return &User{} },
	Scan: func(row db.RowScanner) (*User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Name, &u.PolicyMask)
		if err != nil {
			return nil, err
		}
		return &u, nil
	},
	Args: func(u *User) []any {
		return []any{u.Login, u.PasswordHash, u.Name, u.PolicyMask}
	},
}

// FoodBinding describes Food to the generic data-access layer.
var FoodBinding = db.Binding[*Food]{
	Name:    "Food",
	Table:   "foods",
	Columns: []string{"user_id", "title", "type", "number_of_calories", "country", "is_public"},
	Fields: map[string]string{
		"id":               "id",
		"userid":           "user_id",
		"title":            "title",
		"type":             "type",
		"numberofcalories": "number_of_calories",
		"country":          "country",
		"ispublic":         "is_public",
	},
	New: func() *Food { return &Food{} },
	Scan: func(row db.RowScanner) (*Food, error) {
		var f Food
		err := row.Scan(&f.ID, &f.UserID, &f.Title, &f.Type, &f.NumberOfCalories, &f.Country, &f.IsPublic)
		if err != nil {
			return nil, err
		}
		return &f, nil
	},
	Args: func(f *Food) []any {
		return []any{f.UserID, f.Title, f.Type, f.NumberOfCalories, f.Country, f.IsPublic}
	},
}

// DeliciousBinding describes UserDeliciousFood to the generic data-access
// layer.
var DeliciousBinding = db.Binding[*UserDeliciousFood]{
	Name:    "UserDeliciousFood",
	Table:   "user_delicious_foods",
	Columns: []string{"user_id", "food_id"},
	Fields: map[string]string{
		"id":     "id",
		"userid": "user_id",
		"foodid": "food_id",
	},
	New: func() *UserDeliciousFood { return &UserDeliciousFood{} },
	Scan: func(row db.RowScanner) (*UserDeliciousFood, error) {
		var d UserDeliciousFood
		err := row.Scan(&d.ID, &d.UserID, &d.FoodID)
		if err != nil {
			return nil, err
		}
		return &d, nil
	},
	Args: func(d *UserDeliciousFood) []any {
		return []any{d.UserID, d.FoodID}
	},
}

// RefreshTokenBinding describes RefreshToken to the generic data-access
// layer.
var RefreshTokenBinding = db.Binding[*RefreshToken]{
	Name:    "RefreshToken",
	Table:   "refresh_tokens",
	Columns: []string{"user_id", "token", "create_time", "life_time"},
	Fields: map[string]string{
		"id":     "id",
		"userid": "user_id",
		"token":  "token",
	},
	New: func() *RefreshToken { return &RefreshToken{} },
	Scan: func(row db.RowScanner) (*RefreshToken, error) {
		var t RefreshToken
		err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreateTime, &t.LifeTime)
		if err != nil {
			return nil, err
		}
		return &t, nil
	},
	Args: func(t *RefreshToken) []any {
		return []any{t.UserID, t.Token, t.CreateTime, t.LifeTime}
	},
}

// FoodOwner relates a Food to the User that owns it.
var FoodOwner = db.NewRelation[*Food, *User](
	"User",
	func(f *Food) int { return f.UserID },
	func(f *Food, id int) { f.UserID = id },
)

// DeliciousOwner relates a UserDeliciousFood mark to the User that made it.
var DeliciousOwner = db.NewRelation[*UserDeliciousFood, *User](
	"User",
	func(d *UserDeliciousFood) int { return d.UserID },
	func(d *UserDeliciousFood, id int) { d.UserID = id },
)

// DeliciousFood relates a UserDeliciousFood mark to the Food it marks.
var DeliciousFood = db.NewRelation[*UserDeliciousFood, *Food](
	"Food",
	func(d *UserDeliciousFood) int { return d.FoodID },
	func(d *UserDeliciousFood, id int) { d.FoodID = id },
)

// RefreshTokenOwner relates a RefreshToken to the User it belongs to.
var RefreshTokenOwner = db.NewRelation[*RefreshToken, *User](
	"User",
	func(t *RefreshToken) int { return t.UserID },
	func(t *RefreshToken, id int) { t.UserID = id },
)

// InitSchema creates the tables of the DeliciousFood schema if they do not
// exist yet.
func InitSchema(sqlDB *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			login TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			policy_mask INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS foods (
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			type INTEGER NOT NULL,
			number_of_calories REAL NOT NULL,
			country TEXT NOT NULL,
			is_public INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_delicious_foods (
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			food_id INTEGER NOT NULL REFERENCES foods(id)
		);`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			token TEXT NOT NULL,
			create_time INTEGER NOT NULL,
			life_time INTEGER NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := sqlDB.Exec(stmt); err != nil {
			return sqlite.WrapDBError(err)
		}
	}
	return nil
}
