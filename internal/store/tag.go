package store

import (
	"context"
	"errors"
	"strings"

	"recipebox/internal/model"

	"gorm.io/gorm"
)

// TagStore 是基于 GORM 的标签仓储，所有操作都按用户过滤。
type TagStore struct {
	db *gorm.DB
}

// NewTagStore 创建 TagStore。
func NewTagStore(db *gorm.DB) *TagStore {
	return &TagStore{db: db}
}

// List 返回用户的全部标签，按名称倒序。
// assignedOnly 为 true 时只返回至少关联了一个菜谱的标签（去重）。
func (s *TagStore) List(ctx context.Context, ownerID uint, assignedOnly bool) ([]model.Tag, error) {
	tags := []model.Tag{}
	q := s.db.WithContext(ctx).Model(&model.Tag{}).Where("tags.user_id = ?", ownerID)
	if assignedOnly {
		q = q.Joins("JOIN recipe_tags rt ON rt.tag_id = tags.id").Distinct("tags.*")
	}
	if err := q.Order("tags.name DESC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Create 为用户创建一个标签。名称在用户内不要求唯一。
func (s *TagStore) Create(ctx context.Context, ownerID uint, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newFieldError("name", "name must not be blank")
	}
	tag := model.Tag{UserID: ownerID, Name: name}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetOrCreate 在用户范围内按名称精确匹配标签，不存在则创建。
// 在菜谱写入的事务中用于解析嵌套的 {name} 对象。
func (s *TagStore) GetOrCreate(ctx context.Context, ownerID uint, name string) (*model.Tag, error) {
	return getOrCreateTag(s.db.WithContext(ctx), ownerID, name)
}

func getOrCreateTag(tx *gorm.DB, ownerID uint, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newFieldError("tags", "tag name must not be blank")
	}
	var tag model.Tag
	err := tx.Where("user_id = ? AND name = ?", ownerID, name).
		FirstOrCreate(&tag, model.Tag{UserID: ownerID, Name: name}).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Update 修改标签名称，标签不存在或不属于该用户时返回 ErrNotFound。
func (s *TagStore) Update(ctx context.Context, ownerID, id uint, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newFieldError("name", "name must not be blank")
	}

	res := s.db.WithContext(ctx).Model(&model.Tag{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Update("name", name)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// 名称未变化时 MySQL 也会报告 0 行，需要确认记录是否真的存在。
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Tag{}).
			Where("id = ? AND user_id = ?", id, ownerID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
	}

	var tag model.Tag
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// Delete 删除标签及其与菜谱的关联，不属于该用户时返回 ErrNotFound。
func (s *TagStore) Delete(ctx context.Context, ownerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag model.Tag
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&tag).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Exec("DELETE FROM recipe_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Tag{}, id).Error
	})
}
