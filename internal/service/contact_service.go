package service

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/model"
	"Magpie/internal/repository"
	"context"
)

type ContactService interface {
	AddContact(ctx context.Context, ownerID uint64, req *dto.AddContactReq) error
	RemoveContact(ctx context.Context, ownerID, contactID uint64) error
	ListContacts(ctx context.Context, ownerID uint64) ([]*dto.ContactDTO, error)
	UpdateRemark(ctx context.Context, ownerID, contactID uint64, remark string) error
}

type ContactServiceImpl struct {
	contactRepo repository.ContactRepo
	userRepo    repository.UserRepo
}

func NewContactService(contactRepo repository.ContactRepo, userRepo repository.UserRepo) ContactService {
	return &ContactServiceImpl{
		contactRepo: contactRepo,
		userRepo:    userRepo,
	}
}

func (s *ContactServiceImpl) AddContact(ctx context.Context, ownerID uint64, req *dto.AddContactReq) error {
	if req.ContactID == ownerID {
		return ErrContactSelf
	}
	user, err := s.userRepo.GetUserById(ctx, req.ContactID)
	if err != nil {
		return err
	}
	if user == nil || user.IsDelete {
		return ErrUserNotFound
	}
	return s.contactRepo.AddContact(ctx, &model.Contact{
		OwnerID:   ownerID,
		ContactID: req.ContactID,
		Remark:    req.Remark,
	})
}

func (s *ContactServiceImpl) RemoveContact(ctx context.Context, ownerID, contactID uint64) error {
	return s.contactRepo.RemoveContact(ctx, ownerID, contactID)
}

func (s *ContactServiceImpl) ListContacts(ctx context.Context, ownerID uint64) ([]*dto.ContactDTO, error) {
	contacts, err := s.contactRepo.ListContacts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.ContactDTO, 0, len(contacts))
	for _, c := range contacts {
		d := &dto.ContactDTO{
			UserID:    c.ContactID,
			Remark:    c.Remark,
			Nickname:  c.Contact.Nickname,
			AvatarURL: c.Contact.AvatarURL,
			IsOnline:  c.Contact.IsOnline,
		}
		res = append(res, d)
	}
	return res, nil
}

func (s *ContactServiceImpl) UpdateRemark(ctx context.Context, ownerID, contactID uint64, remark string) error {
	return s.contactRepo.UpdateRemark(ctx, ownerID, contactID, remark)
}
