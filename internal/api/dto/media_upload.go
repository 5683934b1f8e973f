package dto

// MediaTempMetadata 临时媒体元数据，记录在 Redis 中待清理
type MediaTempMetadata struct {
	MimeType  string `json:"mime_type"`
	CreatedAt int64  `json:"created_at"`
}

// UploadResultDTO 上传响应
type UploadResultDTO struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url,omitempty"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}
