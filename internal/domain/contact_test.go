package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmission(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Submission
		wantErr error
	}{
		{"Valid submission", `{"name":"Test","email":"test@example.com","message":"Hello"}`, Submission{"Test", "test@example.com", "Hello"}, nil},
		{"Extra fields ignored", `{"name":"a","email":"b","message":"c","subject":"x"}`, Submission{"a", "b", "c"}, nil},
		{"Number coerced to string", `{"name":42,"email":"b","message":"c"}`, Submission{"42", "b", "c"}, nil},
		{"True coerced to string", `{"name":"a","email":"b","message":true}`, Submission{"a", "b", "true"}, nil},
		{"Raw string is not JSON", `not json`, Submission{}, ErrInvalidJSON},
		{"Empty body", ``, Submission{}, ErrInvalidJSON},
		{"JSON null", `null`, Submission{}, ErrInvalidJSON},
		{"JSON false", `false`, Submission{}, ErrInvalidJSON},
		{"JSON zero", `0`, Submission{}, ErrInvalidJSON},
		{"JSON empty string", `""`, Submission{}, ErrInvalidJSON},
		{"Trailing garbage", `{"name":"a","email":"b","message":"c"} x`, Submission{}, ErrInvalidJSON},
		{"Trailing closing brace", `{"name":"a","email":"b","message":"c"}}`, Submission{}, ErrInvalidJSON},
		{"Trailing closing bracket", `{"name":"a","email":"b","message":"c"}]`, Submission{}, ErrInvalidJSON},
		{"Second JSON value", `{"name":"a","email":"b","message":"c"} {}`, Submission{}, ErrInvalidJSON},
		{"Trailing whitespace", "{\"name\":\"a\",\"email\":\"b\",\"message\":\"c\"}\n ", Submission{Name: "a", Email: "b", Message: "c"}, nil},
		{"JSON string literal", `"hello"`, Submission{}, ErrMissingFields},
		{"JSON array", `[1,2]`, Submission{}, ErrMissingFields},
		{"Empty name", `{"name":"","email":"a@b.com","message":"hi"}`, Submission{}, ErrMissingFields},
		{"Null email", `{"name":"a","email":null,"message":"hi"}`, Submission{}, ErrMissingFields},
		{"Missing message", `{"name":"a","email":"a@b.com"}`, Submission{}, ErrMissingFields},
		{"Zero message", `{"name":"a","email":"a@b.com","message":0}`, Submission{}, ErrMissingFields},
		{"Empty object", `{}`, Submission{}, ErrMissingFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSubmission([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{`a & b`, "a &amp; b"},
		{`"quoted" 'single'`, "&quot;quoted&quot; &#39;single&#39;"},
		{"&lt;", "&amp;lt;"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeHTML(tt.in))
		})
	}
}

func TestSanitizeMessage(t *testing.T) {
	t.Run("换行转换为 <br>", func(t *testing.T) {
		assert.Equal(t, "line1<br>line2", SanitizeMessage("line1\nline2"))
	})

	t.Run("按转义后的字符截断到 2000", func(t *testing.T) {
		got := SanitizeMessage(strings.Repeat("a", 2500))
		assert.Len(t, got, MaxMessageLength)
	})

	t.Run("转义导致的增长计入长度", func(t *testing.T) {
		// 500 个 '<' 转义后为 2000 个字符，恰好不截断
		got := SanitizeMessage(strings.Repeat("<", 500))
		assert.Equal(t, strings.Repeat("&lt;", 500), got)

		got = SanitizeMessage(strings.Repeat("<", 501))
		assert.Equal(t, strings.Repeat("&lt;", 500), got)
	})

	t.Run("边界上的实体会被截断", func(t *testing.T) {
		got := SanitizeMessage(strings.Repeat("a", 1998) + "&")
		assert.Equal(t, strings.Repeat("a", 1998)+"&a", got)
	})

	t.Run("按字符而非字节计数", func(t *testing.T) {
		got := SanitizeMessage(strings.Repeat("é", 2100))
		assert.Equal(t, MaxMessageLength, len([]rune(got)))
	})

	t.Run("表情按码点计数且不拆分", func(t *testing.T) {
		got := SanitizeMessage(strings.Repeat("😀", 2100))
		assert.Equal(t, strings.Repeat("😀", MaxMessageLength), got)
		assert.True(t, utf8.ValidString(got))
	})

	t.Run("截断后才替换换行", func(t *testing.T) {
		got := SanitizeMessage(strings.Repeat("\n", 2001))
		assert.Equal(t, strings.Repeat("<br>", 2000), got)
	})
}

func TestNewEnvelope(t *testing.T) {
	clean := Sanitize(Submission{
		Name:    "<b>Eve</b>",
		Email:   "eve@example.com",
		Message: "<script>alert(1)</script>\nbye",
	})

	env := NewEnvelope("site@example.com", "me@example.com", clean)

	assert.Equal(t, "site@example.com", env.From)
	assert.Equal(t, "me@example.com", env.To)
	assert.Equal(t, "New Message from Portfolio: &lt;b&gt;Eve&lt;/b&gt;", env.Subject)
	assert.Equal(t, "eve@example.com", env.ReplyTo)
	assert.Contains(t, env.HTML, "<p><strong>Name:</strong> &lt;b&gt;Eve&lt;/b&gt;</p>")
	assert.Contains(t, env.HTML, "<p><strong>Email:</strong> eve@example.com</p>")
	assert.Contains(t, env.HTML, "<p>&lt;script&gt;alert(1)&lt;/script&gt;<br>bye</p>")
	assert.NotContains(t, env.HTML, "<script>")
}

func TestErrors(t *testing.T) {
	rl := &RateLimitError{RetryAfter: 42 * time.Second}
	assert.True(t, errors.Is(rl, ErrRateLimited))
	assert.Contains(t, rl.Error(), "42s")

	pe := &ProviderError{Provider: "resend", StatusCode: 422, Message: "Invalid `from` field"}
	assert.Equal(t, "resend: status 422: Invalid `from` field", pe.Error())
	assert.Equal(t, "smtp: refused", (&ProviderError{Provider: "smtp", Message: "refused"}).Error())
}
