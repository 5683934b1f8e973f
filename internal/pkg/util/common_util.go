package util

// PtrString 用于将 string 转换为 *string
func PtrString(s string) *string {
	return &s
}

func PtrStr(s string) *string {
	return &s
}

func PtrInt(i int) *int {
	return &i
}

func PtrFloat32(f float32) *float32 {
	return &f
}

// Truncate 截断字符串到 limit 个字符，用于消息预览
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
