package store

import (
	"context"
	"errors"
	"strings"

	"recipebox/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MinPasswordLen 是创建或修改密码时允许的最短长度。
const MinPasswordLen = 8

// superuserEmail 是 CreateSuperuser 使用的占位邮箱。
const superuserEmail = "admin@example.com"

// UserStore 是基于 GORM 的用户仓储。
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 创建 UserStore。
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUserParams 创建用户的参数。
type CreateUserParams struct {
	Username string
	Email    string
	Name     string
	Password string
}

// UpdateUserParams 更新用户资料的参数，nil 字段保持不变。
type UpdateUserParams struct {
	Name     *string
	Password *string
}

// NormalizeEmail 将邮箱地址的域名部分转为小写，本地部分保持原样。
// 没有 @ 的输入原样返回，由字段校验报错。
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

func validateCreateUser(p CreateUserParams) *ValidationError {
	fields := map[string]string{}
	if strings.TrimSpace(p.Username) == "" {
		fields["username"] = "username must not be blank"
	}
	email := strings.TrimSpace(p.Email)
	if email == "" {
		fields["email"] = "email must not be blank"
	} else if !strings.Contains(email[1:], "@") || strings.HasSuffix(email, "@") {
		fields["email"] = "enter a valid email address"
	}
	if len([]rune(p.Password)) < MinPasswordLen {
		fields["password"] = "password must be at least 8 characters"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create 校验并持久化一个新用户。
//
// 用户名或邮箱为空、邮箱格式非法、密码过短、用户名或邮箱已被占用时
// 返回 *ValidationError；密码以 bcrypt 哈希存储，邮箱域名部分小写。
func (s *UserStore) Create(ctx context.Context, p CreateUserParams) (*model.User, error) {
	if verr := validateCreateUser(p); verr != nil {
		return nil, verr
	}

	username := strings.TrimSpace(p.Username)
	email := NormalizeEmail(p.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, newFieldError("username", "a user with that username already exists")
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, newFieldError("email", "a user with that email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Username: username,
		Email:    email,
		Name:     p.Name,
		Password: string(hash),
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// 并发创建同名用户会绕过上面的预检，由唯一索引兜底。
		if isDuplicateKeyErr(err) {
			field := duplicateKeyField(err)
			return nil, newFieldError(field, "a user with that "+field+" already exists")
		}
		return nil, err
	}
	return &user, nil
}

// CreateSuperuser 创建具备 staff 和 superuser 标记的特权用户。
// 邮箱使用固定占位值，其余校验与 Create 相同。
func (s *UserStore) CreateSuperuser(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.Create(ctx, CreateUserParams{
		Username: username,
		Email:    superuserEmail,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"is_staff":     true,
		"is_superuser": true,
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	user.IsStaff = true
	user.IsSuperuser = true
	return user, nil
}

// Authenticate 校验用户名和密码，账号必须处于启用状态。
// 任何失败都返回同一个 ErrInvalidCredentials。
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetByID 按 ID 查询用户。
func (s *UserStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Update 更新用户的显示名称和密码，nil 字段保持不变。
func (s *UserStore) Update(ctx context.Context, id uint, p UpdateUserParams) (*model.User, error) {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Password != nil {
		if len([]rune(*p.Password)) < MinPasswordLen {
			return nil, newFieldError("password", "password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*p.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hash)
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetByID(ctx, id)
}

// Delete 删除用户及其名下全部数据。
//
// 在单个事务中依次清理菜谱的标签/食材关联、菜谱、标签、食材，最后删除
// 用户本身。
func (s *UserStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var recipeIDs []uint
		if err := tx.Model(&model.Recipe{}).Where("user_id = ?", id).Pluck("id", &recipeIDs).Error; err != nil {
			return err
		}
		if len(recipeIDs) > 0 {
			if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id IN ?", recipeIDs).Error; err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM recipe_ingredients WHERE recipe_id IN ?", recipeIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", id).Delete(&model.Recipe{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", id).Delete(&model.Tag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.Ingredient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.User{}, id).Error
	})
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// MySQL 1062: Duplicate entry
	return strings.Contains(err.Error(), "Duplicate entry") || strings.Contains(err.Error(), "duplicate key")
}

// duplicateKeyField 从唯一索引冲突的错误信息里判断冲突的列。
// MySQL 的 1062 错误带有索引名（如 users.idx_users_email）。
func duplicateKeyField(err error) string {
	if strings.Contains(strings.ToLower(err.Error()), "email") {
		return "email"
	}
	return "username"
}
