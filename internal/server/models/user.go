package models

import "time"

// User is a Kiwes member. Text columns are NOT NULL with empty defaults, so
// only Birthday and DeletedAt are nullable.
type User struct {
	ID                     string     `db:"id" json:"id"`
	Email                  string     `db:"email" json:"email"`
	Nickname               string     `db:"nickname" json:"nickname"`
	ProfileImage           string     `db:"profile_image" json:"profileImage"`
	Gender                 string     `db:"gender" json:"gender"`
	Birthday               *time.Time `db:"birthday" json:"birthday,omitempty"`
	Nationality            string     `db:"nationality" json:"nationality"`
	Introduction           string     `db:"introduction" json:"introduction"`
	Provider               string     `db:"provider" json:"provider"`
	Role                   string     `db:"role" json:"-"`
	AdditionalInfoProvided bool       `db:"additional_info_provided" json:"additionalInfoProvided"`
	CreatedAt              time.Time  `db:"created_at" json:"createdAt"`
	DeletedAt              *time.Time `db:"deleted_at" json:"-"`
}

// Deleted reports whether the member has quit.
func (u *User) Deleted() bool {
	return u.DeletedAt != nil
}

// Authorities lists the granted roles carried in access tokens.
func (u *User) Authorities() []string {
	if u.Role == "" {
		return nil
	}
	return []string{u.Role}
}

// AdditionalInfo is what a member submits to finish sign-up.
type AdditionalInfo struct {
	Nickname     string     `json:"nickname"`
	Gender       string     `json:"gender"`
	Birthday     *time.Time `json:"birthday"`
	Nationality  string     `json:"nationality"`
	Introduction string     `json:"introduction"`
}
