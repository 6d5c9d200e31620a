package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe 表示一条属于某个用户的菜谱。
//
// 菜谱与标签、食材都是多对多关系（分别通过 recipe_tags / recipe_ingredients
// 中间表关联）。关联的标签和食材必须与菜谱属于同一个用户，这一点由
// API 层按用户过滤查询来保证，而不是数据库约束。
type Recipe struct {
	ID        uint      `gorm:"primaryKey"` // 菜谱唯一标识
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	UserID uint `gorm:"not null;index"`    // 所属用户 ID
	User   User `gorm:"foreignKey:UserID"` // 所属用户

	Title       string          `gorm:"type:varchar(255);not null"` // 标题
	Description string          `gorm:"type:text"`                  // 描述（可为空）
	TimeMinutes int             `gorm:"not null"`                   // 制作耗时（分钟，非负）
	Price       decimal.Decimal `gorm:"type:decimal(5,2);not null"` // 价格（共 5 位，2 位小数）
	Link        string          `gorm:"type:varchar(255)"`          // 外部链接（可为空）
	Image       string          `gorm:"type:varchar(255)"`          // 上传图片的存储文件名（随机标识 + 原始扩展名）

	Tags        []Tag        `gorm:"many2many:recipe_tags"`        // 关联的标签
	Ingredients []Ingredient `gorm:"many2many:recipe_ingredients"` // 关联的食材
}

// Tag 表示用户自定义的菜谱标签。
//
// 名称在用户内不要求唯一；标签从所有菜谱上移除后也不会被自动删除。
type Tag struct {
	ID        uint      `gorm:"primaryKey"` // 标签 ID
	CreatedAt time.Time // 创建时间

	UserID uint   `gorm:"not null;index"`             // 所属用户 ID
	User   User   `gorm:"foreignKey:UserID"`          // 所属用户
	Name   string `gorm:"type:varchar(255);not null"` // 标签名

	Recipes []Recipe `gorm:"many2many:recipe_tags"` // 关联的菜谱
}

// Ingredient 表示用户自定义的食材，形状和生命周期规则与 Tag 相同，
// 但独立管理。
type Ingredient struct {
	ID        uint      `gorm:"primaryKey"` // 食材 ID
	CreatedAt time.Time // 创建时间

	UserID uint   `gorm:"not null;index"`             // 所属用户 ID
	User   User   `gorm:"foreignKey:UserID"`          // 所属用户
	Name   string `gorm:"type:varchar(255);not null"` // 食材名

	Recipes []Recipe `gorm:"many2many:recipe_ingredients"` // 关联的菜谱
}
