package util

import (
	"Magpie/internal/api/config"
	"fmt"
	log "log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const SuccessResp = "0"
const digits = "0123456789"

var smsClient = resty.New().SetTimeout(10 * time.Second)

// SendSms 调用短信网关下发验证码
func SendSms(phone string, code string) error {
	smsCfg := config.Cfg.SMS
	content := fmt.Sprintf("【Magpie】您的验证码为 %s 。", code)

	log.Info(fmt.Sprintf("发送给 %s 的验证码为 %s", phone, code))

	resp, err := smsClient.R().
		SetQueryParams(map[string]string{
			"u": smsCfg.Username,
			"p": smsCfg.ApiKey,
			"m": phone,
			"c": content,
		}).
		Get(smsCfg.URL)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("sms send failed: %s", resp.Status())
	}
	if resp.String() != SuccessResp {
		return fmt.Errorf("sms send failed: response code %s", resp.String())
	}
	log.Info(fmt.Sprintf("短信接口响应: %s", resp.String()))
	return nil
}

// GenerateCode 生成指定长度的数字验证码
func GenerateCode(length int) string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	code := make([]byte, length)
	for i := range code {
		code[i] = digits[r.Intn(len(digits))]
	}
	return string(code)
}
