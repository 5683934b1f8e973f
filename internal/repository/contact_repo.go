package repository

import (
	"Magpie/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

type ContactRepo interface {
	AddContact(ctx context.Context, contact *model.Contact) error
	RemoveContact(ctx context.Context, ownerID, contactID uint64) error
	ListContacts(ctx context.Context, ownerID uint64) ([]*model.Contact, error)
	IsContact(ctx context.Context, ownerID, contactID uint64) (bool, error)
	UpdateRemark(ctx context.Context, ownerID, contactID uint64, remark string) error
}

type contactRepoImpl struct {
	db *gorm.DB
}

func NewContactRepo(db *gorm.DB) ContactRepo {
	return &contactRepoImpl{db: db}
}

// AddContact 重复添加视为成功
func (s *contactRepoImpl) AddContact(ctx context.Context, contact *model.Contact) error {
	err := s.db.WithContext(ctx).Create(contact).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (s *contactRepoImpl) RemoveContact(ctx context.Context, ownerID, contactID uint64) error {
	return s.db.WithContext(ctx).
		Where("owner_id = ? AND contact_id = ?", ownerID, contactID).
		Delete(&model.Contact{}).Error
}

func (s *contactRepoImpl) ListContacts(ctx context.Context, ownerID uint64) ([]*model.Contact, error) {
	var contacts []*model.Contact
	err := s.db.WithContext(ctx).
		Preload("Contact").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&contacts).Error
	return contacts, err
}

func (s *contactRepoImpl) IsContact(ctx context.Context, ownerID, contactID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Contact{}).
		Where("owner_id = ? AND contact_id = ?", ownerID, contactID).
		Count(&count).Error
	return count > 0, err
}

func (s *contactRepoImpl) UpdateRemark(ctx context.Context, ownerID, contactID uint64, remark string) error {
	return s.db.WithContext(ctx).Model(&model.Contact{}).
		Where("owner_id = ? AND contact_id = ?", ownerID, contactID).
		Update("remark", remark).Error
}
