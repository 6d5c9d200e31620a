package store

import (
	"context"
	"errors"
	"strings"

	"recipebox/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxPrice 对应 decimal(5,2)：两位小数时整数部分最多三位。
var maxPrice = decimal.NewFromInt(1000)

// RecipeStore 是基于 GORM 的菜谱仓储，所有操作都按用户过滤。
type RecipeStore struct {
	db *gorm.DB
}

// NewRecipeStore 创建 RecipeStore。
func NewRecipeStore(db *gorm.DB) *RecipeStore {
	return &RecipeStore{db: db}
}

// LabelRef 是写入负载中只带名称的标签/食材引用。
type LabelRef struct {
	Name string `json:"name" binding:"required"`
}

// RecipeFilter 列表查询的过滤条件。
// TagIDs / IngredientIDs 各自内部取并集，两者之间取交集。
type RecipeFilter struct {
	TagIDs        []uint
	IngredientIDs []uint
}

// CreateRecipeParams 创建菜谱的参数。
// 嵌套的标签/食材按名称在用户范围内 get-or-create 后关联。
type CreateRecipeParams struct {
	Title       string
	Description string
	TimeMinutes int
	Price       decimal.Decimal
	Link        string
	Tags        []LabelRef
	Ingredients []LabelRef
}

// UpdateRecipeParams 更新菜谱的参数，nil 字段保持不变。
//
// Tags / Ingredients 用 *[]LabelRef 区分"负载中没有该键"（nil，保持关联
// 不变）和"空列表"（清空全部关联）。所属用户永远不会被更新。
type UpdateRecipeParams struct {
	Title       *string
	Description *string
	TimeMinutes *int
	Price       *decimal.Decimal
	Link        *string
	Tags        *[]LabelRef
	Ingredients *[]LabelRef
}

func validatePrice(price decimal.Decimal) *ValidationError {
	if price.IsNegative() {
		return newFieldError("price", "price must not be negative")
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return newFieldError("price", "price must have at most 5 digits in total")
	}
	if price.Exponent() < -2 {
		return newFieldError("price", "price must have at most 2 decimal places")
	}
	return nil
}

func validateTimeMinutes(minutes int) *ValidationError {
	if minutes < 0 {
		return newFieldError("time_minutes", "time_minutes must not be negative")
	}
	return nil
}

// List 返回用户的菜谱，按 ID 倒序，标签和食材已预加载。
func (s *RecipeStore) List(ctx context.Context, ownerID uint, filter RecipeFilter) ([]model.Recipe, error) {
	recipes := []model.Recipe{}
	q := s.db.WithContext(ctx).Model(&model.Recipe{}).Where("recipes.user_id = ?", ownerID)
	if len(filter.TagIDs) > 0 {
		q = q.Joins("JOIN recipe_tags rt ON rt.recipe_id = recipes.id").
			Where("rt.tag_id IN ?", filter.TagIDs)
	}
	if len(filter.IngredientIDs) > 0 {
		q = q.Joins("JOIN recipe_ingredients ri ON ri.recipe_id = recipes.id").
			Where("ri.ingredient_id IN ?", filter.IngredientIDs)
	}
	if len(filter.TagIDs) > 0 || len(filter.IngredientIDs) > 0 {
		q = q.Distinct("recipes.*")
	}
	err := q.Order("recipes.id DESC").
		Preload("Tags").
		Preload("Ingredients").
		Find(&recipes).Error
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// Get 返回单条菜谱详情，不属于该用户时返回 ErrNotFound。
func (s *RecipeStore) Get(ctx context.Context, ownerID, id uint) (*model.Recipe, error) {
	var recipe model.Recipe
	err := s.db.WithContext(ctx).
		Preload("Tags").
		Preload("Ingredients").
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&recipe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &recipe, nil
}

// Create 在单个事务中创建菜谱并解析、关联嵌套的标签和食材。
func (s *RecipeStore) Create(ctx context.Context, ownerID uint, p CreateRecipeParams) (*model.Recipe, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, newFieldError("title", "title must not be blank")
	}
	if verr := validateTimeMinutes(p.TimeMinutes); verr != nil {
		return nil, verr
	}
	if verr := validatePrice(p.Price); verr != nil {
		return nil, verr
	}

	recipe := model.Recipe{
		UserID:      ownerID,
		Title:       title,
		Description: p.Description,
		TimeMinutes: p.TimeMinutes,
		Price:       p.Price,
		Link:        p.Link,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&recipe).Error; err != nil {
			return err
		}
		tags, err := resolveTags(tx, ownerID, p.Tags)
		if err != nil {
			return err
		}
		if len(tags) > 0 {
			if err := tx.Model(&recipe).Association("Tags").Append(&tags); err != nil {
				return err
			}
		}
		ingredients, err := resolveIngredients(tx, ownerID, p.Ingredients)
		if err != nil {
			return err
		}
		if len(ingredients) > 0 {
			if err := tx.Model(&recipe).Association("Ingredients").Append(&ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, ownerID, recipe.ID)
}

// Update 更新菜谱，不属于该用户时返回 ErrNotFound。
//
// 标量字段只在非 nil 时写入；Tags / Ingredients 非 nil 时整组替换关联
// （空列表即清空），nil 时保持不变。
func (s *RecipeStore) Update(ctx context.Context, ownerID, id uint, p UpdateRecipeParams) (*model.Recipe, error) {
	updates := map[string]interface{}{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, newFieldError("title", "title must not be blank")
		}
		updates["title"] = title
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.TimeMinutes != nil {
		if verr := validateTimeMinutes(*p.TimeMinutes); verr != nil {
			return nil, verr
		}
		updates["time_minutes"] = *p.TimeMinutes
	}
	if p.Price != nil {
		if verr := validatePrice(*p.Price); verr != nil {
			return nil, verr
		}
		updates["price"] = *p.Price
	}
	if p.Link != nil {
		updates["link"] = *p.Link
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe model.Recipe
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&recipe).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if len(updates) > 0 {
			if err := tx.Model(&recipe).Updates(updates).Error; err != nil {
				return err
			}
		}

		if p.Tags != nil {
			tags, err := resolveTags(tx, ownerID, *p.Tags)
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				if err := tx.Model(&recipe).Association("Tags").Clear(); err != nil {
					return err
				}
			} else if err := tx.Model(&recipe).Association("Tags").Replace(&tags); err != nil {
				return err
			}
		}
		if p.Ingredients != nil {
			ingredients, err := resolveIngredients(tx, ownerID, *p.Ingredients)
			if err != nil {
				return err
			}
			if len(ingredients) == 0 {
				if err := tx.Model(&recipe).Association("Ingredients").Clear(); err != nil {
					return err
				}
			} else if err := tx.Model(&recipe).Association("Ingredients").Replace(&ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, ownerID, id)
}

// Delete 删除菜谱及其关联，不属于该用户时返回 ErrNotFound。
// 上传过的图片文件不会被自动删除。
func (s *RecipeStore) Delete(ctx context.Context, ownerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe model.Recipe
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&recipe).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM recipe_ingredients WHERE recipe_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Recipe{}, id).Error
	})
}

// SetImage 记录菜谱的图片文件名，不属于该用户时返回 ErrNotFound。
// 旧图片文件保留在磁盘上，由调用方决定是否清理。
func (s *RecipeStore) SetImage(ctx context.Context, ownerID, id uint, filename string) (*model.Recipe, error) {
	res := s.db.WithContext(ctx).Model(&model.Recipe{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Update("image", filename)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, ownerID, id)
}

// resolveTags 将名称引用解析为该用户名下的标签行，必要时创建。
// 同一负载内重复的名称只解析一次，不会产生重复行。
func resolveTags(tx *gorm.DB, ownerID uint, refs []LabelRef) ([]model.Tag, error) {
	seen := make(map[string]struct{}, len(refs))
	out := make([]model.Tag, 0, len(refs))
	for _, ref := range refs {
		name := strings.TrimSpace(ref.Name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tag, err := getOrCreateTag(tx, ownerID, name)
		if err != nil {
			return nil, err
		}
		out = append(out, *tag)
	}
	return out, nil
}

// resolveIngredients 将名称引用解析为该用户名下的食材行，必要时创建。
func resolveIngredients(tx *gorm.DB, ownerID uint, refs []LabelRef) ([]model.Ingredient, error) {
	seen := make(map[string]struct{}, len(refs))
	out := make([]model.Ingredient, 0, len(refs))
	for _, ref := range refs {
		name := strings.TrimSpace(ref.Name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		ingredient, err := getOrCreateIngredient(tx, ownerID, name)
		if err != nil {
			return nil, err
		}
		out = append(out, *ingredient)
	}
	return out, nil
}
