// seed-admin creates or resets the admin user for one tenant.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-admin -tenant <tenant-id> [-username admin] [-password ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

func main() {
	tenantId := flag.String("tenant", "", "tenant id to seed")
	username := flag.String("username", "admin", "admin username")
	password := flag.String("password", "", "admin password (required)")
	fullName := flag.String("name", "Administrator", "admin display name")
	flag.Parse()

	if *tenantId == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: seed-admin -tenant <tenant-id> -password <password> [-username admin]")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetTenantIdInContext(ctx, *tenantId)
	ctx = utils.SetUsernameInContext(ctx, "Seed")
	ctx = utils.SetIsAdminInContext(ctx, true)

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).
		Where("tenant_id = ? AND username = ?", *tenantId, *username).
		First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			TenantId: *tenantId,
			Username: *username,
			Password: hashedStr,
			FullName: *fullName,
			IsAdmin:  utils.NewTrue(),
			IsActive: utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: tenant=%q username=%q\n", *tenantId, *username)
		return
	}

	if err := db.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"password":  hashedStr,
		"full_name": *fullName,
		"is_admin":  utils.NewTrue(),
		"is_active": utils.NewTrue(),
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: tenant=%q username=%q\n", *tenantId, *username)
}
