package store

import (
	"context"
	"errors"
	"strings"

	"recipebox/internal/model"

	"gorm.io/gorm"
)

// IngredientStore 是基于 GORM 的食材仓储，规则与 TagStore 相同，
// 只是作用在独立的 ingredients 表上。
type IngredientStore struct {
	db *gorm.DB
}

// NewIngredientStore 创建 IngredientStore。
func NewIngredientStore(db *gorm.DB) *IngredientStore {
	return &IngredientStore{db: db}
}

// List 返回用户的全部食材，按名称倒序。
// assignedOnly 为 true 时只返回至少关联了一个菜谱的食材（去重）。
func (s *IngredientStore) List(ctx context.Context, ownerID uint, assignedOnly bool) ([]model.Ingredient, error) {
	ingredients := []model.Ingredient{}
	q := s.db.WithContext(ctx).Model(&model.Ingredient{}).Where("ingredients.user_id = ?", ownerID)
	if assignedOnly {
		q = q.Joins("JOIN recipe_ingredients ri ON ri.ingredient_id = ingredients.id").Distinct("ingredients.*")
	}
	if err := q.Order("ingredients.name DESC").Find(&ingredients).Error; err != nil {
		return nil, err
	}
	return ingredients, nil
}

// Create 为用户创建一个食材。
func (s *IngredientStore) Create(ctx context.Context, ownerID uint, name string) (*model.Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newFieldError("name", "name must not be blank")
	}
	ingredient := model.Ingredient{UserID: ownerID, Name: name}
	if err := s.db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// GetOrCreate 在用户范围内按名称精确匹配食材，不存在则创建。
func (s *IngredientStore) GetOrCreate(ctx context.Context, ownerID uint, name string) (*model.Ingredient, error) {
	return getOrCreateIngredient(s.db.WithContext(ctx), ownerID, name)
}

func getOrCreateIngredient(tx *gorm.DB, ownerID uint, name string) (*model.Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newFieldError("ingredients", "ingredient name must not be blank")
	}
	var ingredient model.Ingredient
	err := tx.Where("user_id = ? AND name = ?", ownerID, name).
		FirstOrCreate(&ingredient, model.Ingredient{UserID: ownerID, Name: name}).Error
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// Update 修改食材名称，食材不存在或不属于该用户时返回 ErrNotFound。
func (s *IngredientStore) Update(ctx context.Context, ownerID, id uint, name string) (*model.Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newFieldError("name", "name must not be blank")
	}

	res := s.db.WithContext(ctx).Model(&model.Ingredient{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Update("name", name)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Ingredient{}).
			Where("id = ? AND user_id = ?", id, ownerID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
	}

	var ingredient model.Ingredient
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&ingredient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ingredient, nil
}

// Delete 删除食材及其与菜谱的关联，不属于该用户时返回 ErrNotFound。
func (s *IngredientStore) Delete(ctx context.Context, ownerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ingredient model.Ingredient
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&ingredient).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Exec("DELETE FROM recipe_ingredients WHERE ingredient_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Ingredient{}, id).Error
	})
}
