package domain

import "strings"

// MaxMessageLength 转义后的留言最多保留的字符数
const MaxMessageLength = 2000

// htmlEscaper 单遍替换，等价于先替换 & 再替换其余字符，已生成的实体不会被二次转义
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML 转义 & < > " ' 五个字符
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// SanitizeMessage 转义、截断到 MaxMessageLength 个字符，再把换行替换为 <br>
//
// 截断发生在转义之后，长度按转义后的字符计算，
// 位于边界上的实体可能被截成半个（例如 "&am"）。
func SanitizeMessage(s string) string {
	escaped := truncateRunes(EscapeHTML(s), MaxMessageLength)
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// Sanitize 返回可以直接嵌入 HTML 邮件正文的提交副本
func Sanitize(s Submission) Submission {
	return Submission{
		Name:    EscapeHTML(s.Name),
		Email:   EscapeHTML(s.Email),
		Message: SanitizeMessage(s.Message),
	}
}

func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
