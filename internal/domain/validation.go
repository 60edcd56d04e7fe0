package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 回复地址检查的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrDomainTooLong    = errors.New("domain too long (max 253 chars)")
	ErrInvalidDomain    = errors.New("invalid domain format")
)

// RFC 5321 长度限制
const (
	MaxEmailLength     = 254
	MaxLocalPartLength = 64
	MaxDomainLength    = 253
)

// 域名验证（支持子域名，至少两级）
var domainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// CheckReplyTo 检查访客填写的邮箱能否作为 Reply-To
//
// 提交不会因此被拒绝：访客可能故意不留真实地址，结果只用于内容标记。
func CheckReplyTo(email string) error {
	email = strings.TrimSpace(email)

	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return ErrInvalidEmail
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	localPart, domainPart := email[:at], email[at+1:]

	if len(localPart) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	if len(domainPart) > MaxDomainLength {
		return ErrDomainTooLong
	}
	if !domainRegex.MatchString(domainPart) {
		return ErrInvalidDomain
	}

	return nil
}
