package service

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/model"
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts []*model.Contact
}

func (f *fakeContactRepo) AddContact(_ context.Context, contact *model.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.OwnerID == contact.OwnerID && c.ContactID == contact.ContactID {
			// 重复添加幂等
			return nil
		}
	}
	f.contacts = append(f.contacts, contact)
	return nil
}

func (f *fakeContactRepo) RemoveContact(_ context.Context, ownerID, contactID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.contacts[:0]
	for _, c := range f.contacts {
		if c.OwnerID != ownerID || c.ContactID != contactID {
			res = append(res, c)
		}
	}
	f.contacts = res
	return nil
}

func (f *fakeContactRepo) ListContacts(_ context.Context, ownerID uint64) ([]*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*model.Contact, 0)
	for _, c := range f.contacts {
		if c.OwnerID == ownerID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (f *fakeContactRepo) IsContact(_ context.Context, ownerID, contactID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.OwnerID == ownerID && c.ContactID == contactID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeContactRepo) UpdateRemark(_ context.Context, ownerID, contactID uint64, remark string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.OwnerID == ownerID && c.ContactID == contactID {
			c.Remark = remark
		}
	}
	return nil
}

func TestAddContactRules(t *testing.T) {
	contactRepo := &fakeContactRepo{}
	userRepo := newFakeUserRepo(
		&model.User{ID: 1, Nickname: "阿贵"},
		&model.User{ID: 2, Nickname: "小芳"},
		&model.User{ID: 3, IsDelete: true},
	)
	svc := NewContactService(contactRepo, userRepo)
	ctx := context.Background()

	if err := svc.AddContact(ctx, 1, &dto.AddContactReq{ContactID: 1}); !errors.Is(err, ErrContactSelf) {
		t.Errorf("添加自己 err = %v, want %v", err, ErrContactSelf)
	}
	if err := svc.AddContact(ctx, 1, &dto.AddContactReq{ContactID: 404}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("添加不存在的用户 err = %v, want %v", err, ErrUserNotFound)
	}
	if err := svc.AddContact(ctx, 1, &dto.AddContactReq{ContactID: 3}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("添加已注销用户 err = %v, want %v", err, ErrUserNotFound)
	}

	if err := svc.AddContact(ctx, 1, &dto.AddContactReq{ContactID: 2, Remark: "同事"}); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	// 重复添加不报错
	if err := svc.AddContact(ctx, 1, &dto.AddContactReq{ContactID: 2}); err != nil {
		t.Fatalf("重复添加应幂等: %v", err)
	}

	ok, err := contactRepo.IsContact(ctx, 1, 2)
	if err != nil || !ok {
		t.Error("联系人应已落库")
	}
	// 单向关系，反向不自动建立
	ok, _ = contactRepo.IsContact(ctx, 2, 1)
	if ok {
		t.Error("联系人关系是单向的")
	}
}

func TestRemoveAndRemark(t *testing.T) {
	contactRepo := &fakeContactRepo{}
	userRepo := newFakeUserRepo(&model.User{ID: 1}, &model.User{ID: 2})
	svc := NewContactService(contactRepo, userRepo)
	ctx := context.Background()

	if err := svc.AddContact(ctx, 1, &dto.AddContactReq{ContactID: 2}); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	if err := svc.UpdateRemark(ctx, 1, 2, "房东"); err != nil {
		t.Fatalf("UpdateRemark: %v", err)
	}

	list, err := svc.ListContacts(ctx, 1)
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(list) != 1 || list[0].Remark != "房东" {
		t.Errorf("备注未生效: %+v", list)
	}

	if err = svc.RemoveContact(ctx, 1, 2); err != nil {
		t.Fatalf("RemoveContact: %v", err)
	}
	list, _ = svc.ListContacts(ctx, 1)
	if len(list) != 0 {
		t.Error("删除后列表应为空")
	}
}
