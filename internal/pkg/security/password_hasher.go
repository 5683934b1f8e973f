package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// 密码登录是可选能力，注册时允许不设密码
const hashCost = bcrypt.DefaultCost

// HashPassword 生成密码哈希
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("密码不能为空")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("密码哈希失败: %w", err)
	}
	return string(hashed), nil
}

// CheckPasswordHash 校验明文密码与哈希是否匹配
func CheckPasswordHash(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return errors.New("密码不匹配")
	}
	return err
}
