package domain

import "fmt"

// SubjectPrefix 转发邮件主题前缀
const SubjectPrefix = "New Message from Portfolio: "

// Submission 一次联系表单提交，仅在单个请求内存在
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Envelope 发往邮件服务商的出站载荷
type Envelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	ReplyTo string `json:"replyTo"`
	HTML    string `json:"html"`
}

// SendResult 服务商返回的投递结果
type SendResult struct {
	ID string `json:"id"`
}

// NewEnvelope 由已清洗的提交和发件/收件地址构建出站邮件
//
// 调用方必须先调用 Sanitize，这里不再做任何转义。
func NewEnvelope(from, to string, clean Submission) *Envelope {
	return &Envelope{
		From:    from,
		To:      to,
		Subject: SubjectPrefix + clean.Name,
		ReplyTo: clean.Email,
		HTML: fmt.Sprintf(`<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Message:</strong></p>
<p>%s</p>`, clean.Name, clean.Email, clean.Message),
	}
}
