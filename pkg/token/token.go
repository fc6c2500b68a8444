package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// secretKey 是一个全局变量，用于存储校验回调签名的密钥。
var secretKey []byte

// SetSecretKey 使用配置中的密钥初始化签名模块。
// 支付网关的回调必须携带用该密钥计算的HMAC签名。
func SetSecretKey(key string) {
	if key == "" {
		GenerateSecretKey()
		return
	}
	secretKey = []byte(key)
	fmt.Println("Webhook签名密钥已从配置加载。")
}

// GenerateSecretKey 生成一个密码学安全的32字节随机密钥。
// 仅用于未配置密钥的本地开发模式（重启后旧签名全部失效）。
func GenerateSecretKey() {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		panic("无法生成安全的密钥: " + err.Error())
	}
	secretKey = key
	fmt.Println("HMAC密钥已成功生成（开发模式）。")
}

// SignPayload 为给定的原始请求体生成HMAC-SHA256签名。
// 它返回的是签名的Base64编码字符串。
func SignPayload(payload []byte) string {
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payload)
	signature := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(signature)
}

// ValidateSignature 验证给定的请求体和签名是否匹配。
func ValidateSignature(payload []byte, signatureB64 string) bool {
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payload)
	expectedSignature := mac.Sum(nil)

	actualSignature, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return false // 签名解码失败
	}

	// 使用 hmac.Equal 进行安全的、时间恒定的比较，防止时序攻击
	return hmac.Equal(expectedSignature, actualSignature)
}
