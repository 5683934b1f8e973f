package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrMessageNotFound 底层未命中哨兵，服务层翻译为业务错误
var ErrMessageNotFound = errors.New("message not found")

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetMessagesByIds(ctx context.Context, ids []string) ([]*Message, error)
	ListMessages(ctx context.Context, pairID uint64, limit int, before, after *time.Time) ([]*Message, error)
	GetMessageBySeq(ctx context.Context, pairID uint64, seq uint64) (*Message, error)
	UpdateContent(ctx context.Context, id string, content string) (*Message, error)
	SoftDelete(ctx context.Context, id string) (*Message, error)
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	HasMediaReference(ctx context.Context, mediaURL string) (bool, error)
}

// NewMessageID 预生成消息 ID，重放写入时保持幂等
func NewMessageID() string {
	return primitive.NewObjectID().Hex()
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("message"),
	}
}

// SaveMessage 将消息存入 MongoDB，ID 在写入前生成，保证重试幂等
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	_, err := s.col.InsertOne(ctx, msg)
	if mongo.IsDuplicateKeyError(err) {
		// 校准工作池重放同一条消息时直接视为成功
		return nil
	}
	return err
}

func (s *messageRepoImpl) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *messageRepoImpl) GetMessagesByIds(ctx context.Context, ids []string) ([]*Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// ListMessages 历史消息查询逻辑
// before/after 是时间游标；软删除的消息不返回。结果按时间降序 (最新在前)，由服务层翻转
func (s *messageRepoImpl) ListMessages(ctx context.Context, pairID uint64, limit int, before, after *time.Time) ([]*Message, error) {
	filter := bson.M{
		"pair_id":    pairID,
		"is_deleted": false,
	}

	createdAt := bson.M{}
	if before != nil {
		createdAt["$lt"] = *before
	}
	if after != nil {
		createdAt["$gt"] = *after
	}
	if len(createdAt) > 0 {
		filter["created_at"] = createdAt
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetMessageBySeq 精确查询
func (s *messageRepoImpl) GetMessageBySeq(ctx context.Context, pairID uint64, seq uint64) (*Message, error) {
	var msg Message
	filter := bson.M{
		"pair_id": pairID,
		"seq":     seq,
	}
	err := s.col.FindOne(ctx, filter).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateContent 编辑消息正文并打编辑标记，返回更新后的文档
func (s *messageRepoImpl) UpdateContent(ctx context.Context, id string, content string) (*Message, error) {
	update := bson.M{"$set": bson.M{
		"content":    content,
		"is_edited":  true,
		"updated_at": time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SoftDelete 打删除标记，保留行
func (s *messageRepoImpl) SoftDelete(ctx context.Context, id string) (*Message, error) {
	update := bson.M{"$set": bson.M{
		"is_deleted": true,
		"updated_at": time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// HasMediaReference 判断媒体文件是否被任何消息引用，清理任务调用
func (s *messageRepoImpl) HasMediaReference(ctx context.Context, mediaURL string) (bool, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"payload.url": mediaURL},
		bson.M{"payload.thumb_url": mediaURL},
	}}
	count, err := s.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PurgeDeletedBefore 物理清理早于 cutoff 的软删除消息，定时任务调用
func (s *messageRepoImpl) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{
		"is_deleted": true,
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
