package util

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+86 138-0013-8000", "8613800138000"},
		{"(415) 555-2671", "4155552671"},
		{"13800138000", "13800138000"},
		{"abc", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPhoneSuffix(t *testing.T) {
	// 位数不足后缀位数的号码不参与后缀匹配
	if got := PhoneSuffix("12345"); got != "" {
		t.Errorf("短号码应返回空后缀, got %q", got)
	}

	if got := PhoneSuffix("8613800138000"); got != "3800138000" {
		t.Errorf("PhoneSuffix = %q, want %q", got, "3800138000")
	}

	// 归一化后恰好等于后缀位数
	if got := PhoneSuffix("4155552671"); got != "4155552671" {
		t.Errorf("PhoneSuffix = %q, want %q", got, "4155552671")
	}

	// 带格式符的输入先归一化再取后缀
	if got := PhoneSuffix("+1 (415) 555-2671"); got != "4155552671" {
		t.Errorf("PhoneSuffix = %q, want %q", got, "4155552671")
	}
}
