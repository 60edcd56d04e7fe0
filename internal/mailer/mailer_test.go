package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/backend/internal/domain"
)

func testEnvelope() *domain.Envelope {
	return domain.NewEnvelope("Portfolio <noreply@example.com>", "owner@example.com", domain.Submission{
		Name:    "Ann",
		Email:   "ann@example.com",
		Message: "hi<br>there",
	})
}

func TestResendSender_Send(t *testing.T) {
	var got resendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer server.Close()

	sender := NewResendSender(server.URL+"/", time.Second)
	result, err := sender.Send(context.Background(), "re_test", testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, "49a3999c-0ce1-4ea6-ab68-afcd6dc2e794", result.ID)

	assert.Equal(t, "Portfolio <noreply@example.com>", got.From)
	assert.Equal(t, []string{"owner@example.com"}, got.To)
	assert.Equal(t, "New Message from Portfolio: Ann", got.Subject)
	assert.Equal(t, "ann@example.com", got.ReplyTo)
	assert.Contains(t, got.HTML, "<p>hi<br>there</p>")
}

func TestResendSender_ProviderError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantName    string
	}{
		{
			name:        "结构化错误",
			status:      http.StatusForbidden,
			body:        `{"statusCode":403,"name":"validation_error","message":"The example.com domain is not verified."}`,
			wantMessage: "The example.com domain is not verified.",
			wantName:    "validation_error",
		},
		{
			name:        "纯文本错误",
			status:      http.StatusBadGateway,
			body:        "upstream down\n",
			wantMessage: "upstream down",
		},
		{
			name:        "空响应体",
			status:      http.StatusTooManyRequests,
			wantMessage: "Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewResendSender(server.URL, time.Second).Send(context.Background(), "re_test", testEnvelope())

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "resend", pe.Provider)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.wantMessage, pe.Message)
			assert.Equal(t, tt.wantName, pe.Name)
		})
	}
}

func TestResendSender_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewResendSender(server.URL, 0).Send(ctx, "re_test", testEnvelope())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewResendSender_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, defaultResendBaseURL, NewResendSender("  ", time.Second).baseURL)
}

// 进程内 SMTP 服务器，记录收到的报文
type captureBackend struct {
	mu       sync.Mutex
	from     string
	rcpts    []string
	data     string
	rejectTo string
	username string
	password string
}

func (b *captureBackend) NewSession(_ *gosmtp.Conn) (gosmtp.Session, error) {
	return &captureSession{backend: b}, nil
}

type captureSession struct {
	backend *captureBackend
}

func (s *captureSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *captureSession) Auth(string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		s.backend.mu.Lock()
		defer s.backend.mu.Unlock()
		s.backend.username = username
		s.backend.password = password
		return nil
	}), nil
}

func (s *captureSession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if s.backend.rejectTo != "" && to == s.backend.rejectTo {
		return &gosmtp.SMTPError{Code: 550, EnhancedCode: gosmtp.EnhancedCode{5, 1, 1}, Message: "mailbox unavailable"}
	}
	s.backend.rcpts = append(s.backend.rcpts, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.data = string(raw)
	return nil
}

func (s *captureSession) Reset() {}

func (s *captureSession) Logout() error { return nil }

func startSMTPServer(t *testing.T, be *captureBackend) string {
	t.Helper()

	server := gosmtp.NewServer(be)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = server.Serve(l) }()
	t.Cleanup(func() { _ = server.Close() })

	return l.Addr().String()
}

func TestSMTPSender_Send(t *testing.T) {
	be := &captureBackend{}
	addr := startSMTPServer(t, be)

	sender := NewSMTPSender(addr, "", "")
	result, err := sender.Send(context.Background(), "", testEnvelope())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.ID, "@127.0.0.1"), result.ID)

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.Equal(t, "noreply@example.com", be.from)
	assert.Equal(t, []string{"owner@example.com"}, be.rcpts)
	assert.Contains(t, be.data, "Reply-To: ann@example.com")
	assert.Contains(t, be.data, "Subject: New Message from Portfolio: Ann")
	assert.Contains(t, be.data, "Message-ID: <"+result.ID+">")
	assert.Contains(t, be.data, "<p>hi<br>there</p>")
}

func TestBuildMessage_HeaderInjection(t *testing.T) {
	tests := []struct {
		name        string
		sub         domain.Submission
		wantReplyTo string
	}{
		{
			name:        "合法回复地址",
			sub:         domain.Submission{Name: "Ann", Email: "ann@example.com", Message: "hi"},
			wantReplyTo: "ann@example.com",
		},
		{
			name: "邮箱字段携带换行",
			sub: domain.Submission{
				Name:    "Eve",
				Email:   "eve@example.com\r\nBcc: victim@example.org\r\nX-Injected: yes",
				Message: "hi",
			},
		},
		{
			name: "邮箱字段插入空行",
			sub: domain.Submission{
				Name:    "Eve",
				Email:   "eve@example.com\n\nspoofed body",
				Message: "hi",
			},
		},
		{
			name: "名字携带换行",
			sub: domain.Submission{
				Name:    "Eve\r\nBcc: victim@example.org",
				Email:   "eve@example.com",
				Message: "hi",
			},
			wantReplyTo: "eve@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := domain.NewEnvelope("noreply@example.com", "owner@example.com", domain.Sanitize(tt.sub))
			raw := string(buildMessage(env, "<id@localhost>", time.Unix(0, 0)))

			head, _, found := strings.Cut(raw, "\r\n\r\n")
			require.True(t, found)
			assert.NotContains(t, head, "spoofed body")

			var replyTo string
			for _, line := range strings.Split(head, "\r\n") {
				key, value, ok := strings.Cut(line, ": ")
				require.True(t, ok, "malformed header line %q", line)
				assert.NotEqual(t, "Bcc", key)
				assert.NotEqual(t, "X-Injected", key)
				if key == "Reply-To" {
					replyTo = value
				}
			}
			assert.Equal(t, tt.wantReplyTo, replyTo)
		})
	}
}

func TestSMTPSender_AuthFallsBackToAPIKey(t *testing.T) {
	be := &captureBackend{}
	addr := startSMTPServer(t, be)

	_, err := NewSMTPSender(addr, "resend", "").Send(context.Background(), "re_test", testEnvelope())
	require.NoError(t, err)

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.Equal(t, "resend", be.username)
	assert.Equal(t, "re_test", be.password)
}

func TestSMTPSender_Rejected(t *testing.T) {
	be := &captureBackend{rejectTo: "owner@example.com"}
	addr := startSMTPServer(t, be)

	_, err := NewSMTPSender(addr, "", "").Send(context.Background(), "", testEnvelope())

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "smtp", pe.Provider)
	assert.Equal(t, 550, pe.StatusCode)
	assert.Contains(t, pe.Message, "mailbox unavailable")
}

func TestSMTPSender_InvalidAddress(t *testing.T) {
	env := testEnvelope()
	env.To = "not an address"

	_, err := NewSMTPSender("127.0.0.1:1", "", "").Send(context.Background(), "", env)

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "invalid to address")
}

// countingSender 记录调用次数
type countingSender struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSender) Name() string { return "counting" }

func (c *countingSender) Send(context.Context, string, *domain.Envelope) (*domain.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &domain.SendResult{ID: "ok"}, nil
}

func TestThrottled(t *testing.T) {
	t.Run("不限速时返回原 Sender", func(t *testing.T) {
		next := &countingSender{}
		assert.Same(t, next, NewThrottled(next, 0))
	})

	t.Run("超出速率时等待被取消", func(t *testing.T) {
		next := &countingSender{}
		sender := NewThrottled(next, 0.001)
		assert.Equal(t, "counting", sender.Name())

		_, err := sender.Send(context.Background(), "", testEnvelope())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = sender.Send(ctx, "", testEnvelope())
		assert.ErrorContains(t, err, "outbound throttle")
		assert.Equal(t, 1, next.calls)
	})
}
