package dto

// AddContactReq 添加联系人请求
type AddContactReq struct {
	ContactID uint64 `json:"contact_id" binding:"required"`
	Remark    string `json:"remark"`
}

// ContactDTO 联系人列表项
type ContactDTO struct {
	UserID    uint64 `json:"user_id"`
	Nickname  string `json:"nickname"`
	Remark    string `json:"remark,omitempty"`
	AvatarURL string `json:"avatar_url"`
	IsOnline  bool   `json:"is_online"`
}
