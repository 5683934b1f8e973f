package util

import (
	"Magpie/internal/pkg/consts"
	"strings"
)

// NormalizePhone 归一化手机号：只保留数字字符
// "+1 (555) 123-4567" 与 "5551234567" 归一化后可比
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneSuffix 取归一化号码的后 10 位作为匹配键
// 不足 10 位返回空串，调用方按未命中处理
func PhoneSuffix(raw string) string {
	digits := NormalizePhone(raw)
	if len(digits) < consts.PhoneSuffixLen {
		return ""
	}
	return digits[len(digits)-consts.PhoneSuffixLen:]
}
