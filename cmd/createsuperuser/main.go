package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"recipebox/internal/config"
	"recipebox/internal/store"

	"golang.org/x/term"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// 创建超级用户的命令行工具。
//
// 用法:
//
//	createsuperuser -username admin [-password secret]
//
// 不提供 -password 时会从终端安全读取密码。
func main() {
	username := flag.String("username", "", "superuser username")
	password := flag.String("password", "", "superuser password (prompted if empty)")
	flag.Parse()

	if strings.TrimSpace(*username) == "" {
		log.Fatal("createsuperuser: -username is required")
	}

	pw := *password
	if pw == "" {
		var err error
		pw, err = promptPassword()
		if err != nil {
			log.Fatalf("createsuperuser: read password: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("createsuperuser: load config: %v", err)
	}

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		log.Fatalf("createsuperuser: connect mysql: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	user, err := store.NewUserStore(db).CreateSuperuser(context.Background(), *username, pw)
	if err != nil {
		log.Fatalf("createsuperuser: %v", err)
	}
	fmt.Printf("superuser %q created (id=%d)\n", user.Username, user.ID)
}

// promptPassword 从终端读取并确认密码，不回显。
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Password (again): ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
