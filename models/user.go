package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int            `gorm:"primary_key" json:"id"`
	Uuid      string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId  string         `gorm:"index;not null;uniqueIndex:idx_user_name" json:"tenant_id"`
	Username  string         `gorm:"size:100;not null;uniqueIndex:idx_user_name" json:"username"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	FullName  string         `gorm:"size:255" json:"full_name"`
	IsAdmin   *bool          `gorm:"not null;default:false" json:"is_admin"`
	IsActive  *bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type NewUser struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
	IsAdmin  *bool  `json:"is_admin"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&u.Uuid)
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[User](ctx, tenantId, "username", input.Username, 0); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	password := string(hashed)
	isAdmin := input.IsAdmin
	if isAdmin == nil {
		isAdmin = utils.NewFalse()
	}
	user := User{
		TenantId: tenantId,
		Username: input.Username,
		Password: password,
		FullName: input.FullName,
		IsAdmin:  isAdmin,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate checks the credential and returns the active user.
func Authenticate(ctx context.Context, tenantId string, username string, password string) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND username = ? AND is_active = ?", tenantId, username, true).
		First(&user).Error
	if err != nil {
		return nil, utils.NewValidationError("invalid credentials")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, utils.NewValidationError("invalid credentials")
	}
	return &user, nil
}
