package models

import "time"

// User is the login identity. Customer and Staff hang off it one-to-one.
type User struct {
	Model
	Username              string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email                 string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName             string     `gorm:"size:150" json:"first_name"`
	LastName              string     `gorm:"size:150" json:"last_name"`
	Password              string     `gorm:"size:255;not null" json:"-"`
	Role                  string     `gorm:"size:20;not null;index;default:customer" json:"role"`
	Active                bool       `gorm:"not null;default:true" json:"active"`
	PasswordChangePending bool       `gorm:"not null;default:false" json:"password_change_pending"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`

	Customer *Customer `gorm:"foreignKey:UserID" json:"customer,omitempty"`
	Staff    *Staff    `gorm:"foreignKey:UserID" json:"staff,omitempty"`
}

// FullName joins the non-empty name parts, falling back to the username.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

type Customer struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Address   string    `gorm:"type:text;not null" json:"address"`
	Phone     string    `gorm:"size:15" json:"phone"`
	Commune   string    `gorm:"size:100;not null" json:"commune"`
	CommuneID *uint     `gorm:"index" json:"commune_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Staff scopes an employee to a branch and, for warehouse clerks, to one
// warehouse of that branch.
type Staff struct {
	UserID      uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	RUT         string    `gorm:"column:rut;size:12;uniqueIndex;not null" json:"rut"`
	BranchID    *uint     `gorm:"index" json:"branch_id"`
	WarehouseID *uint     `gorm:"index" json:"warehouse_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Branch    *Branch    `json:"branch,omitempty"`
	Warehouse *Warehouse `json:"warehouse,omitempty"`
}

func (Staff) TableName() string { return "staff" }

// ActivityLog is the audit trail. A nil UserID means a system action.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index:idx_activity_user_time,priority:1" json:"user_id"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"index;index:idx_activity_user_time,priority:2" json:"created_at"`
}

// RevokedToken blocks a refresh token id until it would have expired anyway.
type RevokedToken struct {
	JTI       string    `gorm:"column:jti;primaryKey;size:64" json:"jti"`
	UserID    uint      `gorm:"index" json:"user_id"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
