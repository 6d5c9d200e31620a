package model

import "time"

// User 表示系统用户。
type User struct {
	ID          uint      `gorm:"primaryKey"`                             // 用户 ID
	Username    string    `gorm:"type:varchar(191);uniqueIndex;not null"` // 用户名（全局唯一）
	Email       string    `gorm:"type:varchar(191);uniqueIndex;not null"` // 邮箱（全局唯一，域名部分统一小写）
	Name        string    `gorm:"type:varchar(255)"`                      // 显示名称
	Password    string    `gorm:"not null"`                               // bcrypt 哈希
	IsActive    bool      `gorm:"default:true"`                           // 是否启用（停用后无法登录和访问 API）
	IsStaff     bool      `gorm:"default:false"`                          // 是否后台人员
	IsSuperuser bool      `gorm:"default:false"`                          // 是否超级用户
	CreatedAt   time.Time // 创建时间

	Recipes     []Recipe     `gorm:"foreignKey:UserID"`
	Tags        []Tag        `gorm:"foreignKey:UserID"`
	Ingredients []Ingredient `gorm:"foreignKey:UserID"`
}
