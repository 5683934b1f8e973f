package dto

// SearchUserDTO 搜索结果项
type SearchUserDTO struct {
	ID        uint64 `json:"id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url"`
	IsOnline  bool   `json:"is_online"`
	IsContact bool   `json:"is_contact"`
}
