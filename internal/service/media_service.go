package service

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/consts"
	"Magpie/internal/pkg/minio"
	"Magpie/internal/pkg/redis"
	"Magpie/internal/pkg/util"
	"bytes"
	"context"
	"fmt"
	"io"
	log "log/slog"
	"path"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const maxMediaSize = 50 << 20

type MediaService interface {
	UploadChatMedia(ctx context.Context, userID uint64, fileName, mimeType string, size int64, r io.Reader) (*dto.UploadResultDTO, error)
}

type MediaServiceImpl struct{}

func NewMediaService() MediaService {
	return &MediaServiceImpl{}
}

// UploadChatMedia 上传聊天媒体文件
// 图片额外生成缩略图；对象登记到 Redis 待清理表，消息引用后由清理任务放行
func (s *MediaServiceImpl) UploadChatMedia(ctx context.Context, userID uint64, fileName, mimeType string, size int64, r io.Reader) (*dto.UploadResultDTO, error) {
	if size <= 0 || size > maxMediaSize {
		return nil, ErrFileNotSupported
	}
	if mimeType == "" {
		return nil, ErrFileNotSupported
	}

	ext := path.Ext(fileName)
	objectName := fmt.Sprintf("chat/%d/%s%s", userID, uuid.New().String(), ext)

	res := &dto.UploadResultDTO{
		MimeType: mimeType,
		Size:     size,
	}

	isImage := strings.HasPrefix(mimeType, consts.MimePrefixImage)
	if isImage {
		data, err := io.ReadAll(io.LimitReader(r, maxMediaSize+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > maxMediaSize {
			return nil, ErrFileNotSupported
		}

		thumb, width, height, err := util.MakeThumbnail(bytes.NewReader(data))
		if err != nil {
			return nil, ErrFileNotSupported
		}
		res.Width = width
		res.Height = height

		thumbName := fmt.Sprintf("thumb/%d/%s.jpg", userID, uuid.New().String())
		if _, err = minio.UploadFile(ctx, minio.MainBucket, thumbName, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
			return nil, err
		}
		res.ThumbURL = minio.GetPublicURL(minio.MainBucket, thumbName)
		s.trackTempMedia(ctx, thumbName, "image/jpeg")

		r = bytes.NewReader(data)
		size = int64(len(data))
	}

	if _, err := minio.UploadFile(ctx, minio.MainBucket, objectName, r, size, mimeType); err != nil {
		return nil, err
	}
	res.URL = minio.GetPublicURL(minio.MainBucket, objectName)

	s.trackTempMedia(ctx, objectName, mimeType)
	return res, nil
}

// trackTempMedia 登记待清理元数据，失败不影响上传结果
func (s *MediaServiceImpl) trackTempMedia(ctx context.Context, objectName, mimeType string) {
	meta := &dto.MediaTempMetadata{
		MimeType:  mimeType,
		CreatedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err = redis.HSet(ctx, consts.MediaTempKey, objectName, string(data)); err != nil {
		log.Warn("媒体清理登记失败", "object", objectName, "err", err)
	}
}
