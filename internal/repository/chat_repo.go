package repository

import (
	"Magpie/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDuplicatePair = errors.New("chat pair already exists")

type ChatRepo interface {
	// AppendToPair 单次发送的全部 MySQL 副作用：定序 + 双摘要落库，整体事务
	AppendToPair(ctx context.Context, senderID, recipientID uint64, preview string, msgType int8, at time.Time) (pairID uint64, newSeq uint64, err error)
	GetPair(ctx context.Context, pairID uint64) (*model.ChatPair, error)
	GetPairByUsers(ctx context.Context, userA, userB uint64) (*model.ChatPair, error)
	RefreshPreview(ctx context.Context, pairID uint64, content string, msgType int8, senderID uint64, at time.Time) error
	MarkRead(ctx context.Context, ownerID, peerID uint64) error
	SetArchived(ctx context.Context, ownerID, peerID uint64, archived bool) error
	ListSummaries(ctx context.Context, ownerID uint64) ([]*model.ChatSummary, error)
	GetTotalUnreadCount(ctx context.Context, ownerID uint64) (int64, error)
}

type chatRepoImpl struct {
	db *gorm.DB
}

func NewChatRepo(db *gorm.DB) ChatRepo {
	return &chatRepoImpl{db: db}
}

// PairKeyOf 生成单聊唯一标识，小 ID 在前
func PairKeyOf(userA, userB uint64) string {
	if userA < userB {
		return fmt.Sprintf("%d_%d", userA, userB)
	}
	return fmt.Sprintf("%d_%d", userB, userA)
}

// AppendToPair 核心定序逻辑：利用 MySQL 行锁确保 Seq 绝对递增
// 同一事务内完成双摘要写入，接收方未读数用相对自增表达，杜绝并发丢增量
func (s *chatRepoImpl) AppendToPair(ctx context.Context, senderID, recipientID uint64, preview string, msgType int8, at time.Time) (uint64, uint64, error) {
	pairKey := PairKeyOf(senderID, recipientID)
	var pairID, newSeq uint64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pair model.ChatPair
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pair_key = ?", pairKey).First(&pair).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 首条消息懒创建会话对，唯一索引兜底并发创建
			pair = model.ChatPair{PairKey: pairKey, LastMessageAt: at}
			if err = tx.Create(&pair).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicatePair
				}
				return err
			}
		} else if err != nil {
			return err
		}
		pairID = pair.ID

		// 原子更新序列号与预览信息
		err = tx.Model(&model.ChatPair{}).Where("id = ?", pair.ID).
			Updates(map[string]interface{}{
				"max_msg_seq":      gorm.Expr("max_msg_seq + 1"),
				"last_msg_content": preview,
				"last_msg_type":    msgType,
				"last_sender_id":   senderID,
				"last_message_at":  at,
			}).Error
		if err != nil {
			return err
		}

		// 发送方摘要：只刷新预览
		if err = s.upsertSummary(tx, senderID, recipientID, pair.ID, preview, msgType, senderID, at, false); err != nil {
			return err
		}
		// 接收方摘要：预览 + 未读数 +1
		if err = s.upsertSummary(tx, recipientID, senderID, pair.ID, preview, msgType, senderID, at, true); err != nil {
			return err
		}

		return tx.Model(&model.ChatPair{}).Select("max_msg_seq").Where("id = ?", pair.ID).Scan(&newSeq).Error
	})
	return pairID, newSeq, err
}

func (s *chatRepoImpl) upsertSummary(tx *gorm.DB, ownerID, peerID, pairID uint64, preview string, msgType int8, senderID uint64, at time.Time, incrUnread bool) error {
	assignments := map[string]interface{}{
		"last_msg_content": preview,
		"last_msg_type":    msgType,
		"last_sender_id":   senderID,
		"last_message_at":  at,
	}
	var unread uint64
	if incrUnread {
		assignments["unread_count"] = gorm.Expr("unread_count + 1")
		unread = 1
	}

	row := &model.ChatSummary{
		OwnerID:        ownerID,
		PeerID:         peerID,
		PairID:         pairID,
		UnreadCount:    unread,
		LastMsgContent: preview,
		LastMsgType:    msgType,
		LastSenderID:   senderID,
		LastMessageAt:  at,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "peer_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(row).Error
}

func (s *chatRepoImpl) GetPair(ctx context.Context, pairID uint64) (*model.ChatPair, error) {
	var pair model.ChatPair
	err := s.db.WithContext(ctx).First(&pair, pairID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &pair, err
}

func (s *chatRepoImpl) GetPairByUsers(ctx context.Context, userA, userB uint64) (*model.ChatPair, error) {
	var pair model.ChatPair
	err := s.db.WithContext(ctx).Where("pair_key = ?", PairKeyOf(userA, userB)).First(&pair).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &pair, err
}

// RefreshPreview 编辑或撤回最新一条消息后回填预览
func (s *chatRepoImpl) RefreshPreview(ctx context.Context, pairID uint64, content string, msgType int8, senderID uint64, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.ChatPair{}).Where("id = ?", pairID).
			Updates(map[string]interface{}{
				"last_msg_content": content,
				"last_msg_type":    msgType,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&model.ChatSummary{}).Where("pair_id = ?", pairID).
			Updates(map[string]interface{}{
				"last_msg_content": content,
				"last_msg_type":    msgType,
			}).Error
	})
}

// MarkRead 归零未读数，天然幂等
func (s *chatRepoImpl) MarkRead(ctx context.Context, ownerID, peerID uint64) error {
	return s.db.WithContext(ctx).Model(&model.ChatSummary{}).
		Where("owner_id = ? AND peer_id = ?", ownerID, peerID).
		Update("unread_count", 0).Error
}

func (s *chatRepoImpl) SetArchived(ctx context.Context, ownerID, peerID uint64, archived bool) error {
	flag := int8(0)
	if archived {
		flag = 1
	}
	return s.db.WithContext(ctx).Model(&model.ChatSummary{}).
		Where("owner_id = ? AND peer_id = ?", ownerID, peerID).
		Update("is_archived", flag).Error
}

// ListSummaries 会话列表，归档的不出现
func (s *chatRepoImpl) ListSummaries(ctx context.Context, ownerID uint64) ([]*model.ChatSummary, error) {
	var summaries []*model.ChatSummary
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND is_archived = 0", ownerID).
		Order("last_message_at DESC").
		Find(&summaries).Error
	return summaries, err
}

// GetTotalUnreadCount 计算全局未读数
func (s *chatRepoImpl) GetTotalUnreadCount(ctx context.Context, ownerID uint64) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&model.ChatSummary{}).
		Where("owner_id = ? AND is_archived = 0", ownerID).
		Select("COALESCE(SUM(unread_count), 0)").
		Scan(&total).Error
	return total, err
}
