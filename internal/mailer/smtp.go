package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"portfolio/backend/internal/domain"
)

// SMTPSender 通过 SMTP 中继投递邮件
//
// 认证使用 PLAIN，用户名为空时不认证。未配置密码时使用 API Key 作为密码，
// 与 Resend 的 SMTP 中继（用户名 "resend"）一致。
type SMTPSender struct {
	addr     string
	username string
	password string
	hostname string
}

// NewSMTPSender 创建 SMTP 投递器
func NewSMTPSender(addr, username, password string) *SMTPSender {
	host := "localhost"
	if h, _, ok := strings.Cut(addr, ":"); ok && h != "" {
		host = h
	}
	return &SMTPSender{
		addr:     addr,
		username: username,
		password: password,
		hostname: host,
	}
}

// Name 投递器名称
func (s *SMTPSender) Name() string {
	return "smtp"
}

// Send 构建 MIME 报文并通过 go-smtp 客户端发送
//
// go-smtp 的 SendMail 不接受 context，这里在 ctx 结束时提前返回，
// 后台连接会在其自身超时后释放。
func (s *SMTPSender) Send(ctx context.Context, apiKey string, env *domain.Envelope) (*domain.SendResult, error) {
	from, err := mail.ParseAddress(env.From)
	if err != nil {
		return nil, &domain.ProviderError{Provider: s.Name(), Message: fmt.Sprintf("invalid from address: %v", err)}
	}
	to, err := mail.ParseAddress(env.To)
	if err != nil {
		return nil, &domain.ProviderError{Provider: s.Name(), Message: fmt.Sprintf("invalid to address: %v", err)}
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.hostname)
	raw := buildMessage(env, messageID, time.Now())

	var auth sasl.Client
	if s.username != "" {
		password := s.password
		if password == "" {
			password = apiKey
		}
		auth = sasl.NewPlainClient("", s.username, password)
	}

	done := make(chan error, 1)
	go func() {
		done <- gosmtp.SendMail(s.addr, auth, from.Address, []string{to.Address}, bytes.NewReader(raw))
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			var smtpErr *gosmtp.SMTPError
			if errors.As(err, &smtpErr) {
				return nil, &domain.ProviderError{Provider: s.Name(), StatusCode: smtpErr.Code, Message: smtpErr.Message}
			}
			return nil, fmt.Errorf("smtp send: %w", err)
		}
	}

	return &domain.SendResult{ID: strings.Trim(messageID, "<>")}, nil
}

// headerValueCleaner 去掉头部值中的换行，防止访客输入拼出新的头部
var headerValueCleaner = strings.NewReplacer("\r", "", "\n", "")

// buildMessage 生成单段 text/html 报文
func buildMessage(env *domain.Envelope, messageID string, now time.Time) []byte {
	var b bytes.Buffer
	writeHeader := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(headerValueCleaner.Replace(value))
		b.WriteString("\r\n")
	}

	writeHeader("From", env.From)
	writeHeader("To", env.To)
	if replyTo, ok := replyToHeader(env.ReplyTo); ok {
		writeHeader("Reply-To", replyTo)
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", env.Subject))
	writeHeader("Date", now.Format(time.RFC1123Z))
	writeHeader("Message-ID", messageID)
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/html; charset="utf-8"`)
	writeHeader("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(env.HTML, "\n", "\r\n"))
	b.WriteString("\r\n")

	return b.Bytes()
}

// replyToHeader 访客地址能被完整解析为单个地址时才写入 Reply-To
func replyToHeader(value string) (string, bool) {
	if value == "" || strings.ContainsAny(value, "\r\n") {
		return "", false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", false
	}
	return addr.Address, true
}
