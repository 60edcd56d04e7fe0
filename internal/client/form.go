package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio/backend/internal/domain"
)

// Status 表单提交状态
type Status int

const (
	StatusIdle Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// FailureMessage 提交失败时展示给用户的固定文案
const FailureMessage = "Failed to send. Please try again or email me directly."

// DefaultResetDelay 成功状态保持多久后回到 idle
const DefaultResetDelay = 5 * time.Second

// ErrBusy 上一次提交尚未结束
var ErrBusy = errors.New("submission in progress")

// Form 单个联系表单的提交状态机
//
// 提交期间字段不可修改，第二次提交直接返回 ErrBusy。失败不会自动重试。
type Form struct {
	client *Client
	logger *zap.Logger

	mu         sync.Mutex
	values     domain.Submission
	loading    bool
	status     Status
	result     *SendResponse
	lastErr    error
	resetDelay time.Duration
	resetTimer *time.Timer
	resetGen   uint64
}

// FormOption 表单选项
type FormOption func(*Form)

// WithResetDelay 修改成功状态的保持时间
func WithResetDelay(d time.Duration) FormOption {
	return func(f *Form) {
		f.resetDelay = d
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) FormOption {
	return func(f *Form) {
		f.logger = logger
	}
}

// NewForm 创建表单
func NewForm(client *Client, opts ...FormOption) *Form {
	f := &Form{
		client:     client,
		logger:     zap.NewNop(),
		resetDelay: DefaultResetDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetValues 填写表单
func (f *Form) SetValues(values domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loading {
		return ErrBusy
	}
	f.values = values
	return nil
}

// Values 当前字段
func (f *Form) Values() domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// Submit 提交当前字段
//
// 成功时清空字段，并在 resetDelay 之后把状态恢复为 idle；
// 失败时状态为 error，返回底层错误。无论结果如何都会退出 loading。
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return ErrBusy
	}
	f.loading = true
	f.status = StatusIdle
	f.lastErr = nil
	f.stopTimerLocked()
	values := f.values
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.loading = false
		f.mu.Unlock()
	}()

	resp, err := f.client.Send(ctx, values)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.logger.Warn("Contact form submission failed", zap.Error(err))
		f.status = StatusError
		f.lastErr = err
		return err
	}

	f.status = StatusSuccess
	f.result = resp
	f.values = domain.Submission{}
	f.resetGen++
	gen := f.resetGen
	f.resetTimer = time.AfterFunc(f.resetDelay, func() { f.resetStatus(gen) })

	return nil
}

// resetStatus 只处理最近一次调度的重置
func (f *Form) resetStatus(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.resetGen {
		return
	}
	if f.status == StatusSuccess {
		f.status = StatusIdle
	}
	f.resetTimer = nil
}

// Status 当前状态
func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Loading 是否正在提交
func (f *Form) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// ErrorText 失败时的提示文案，其他状态返回空串
func (f *Form) ErrorText() string {
	if f.Status() == StatusError {
		return FailureMessage
	}
	return ""
}

// Result 最近一次成功提交的响应，响应体无法解析时为 nil
func (f *Form) Result() *SendResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Err 最近一次失败的原因
func (f *Form) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Close 取消尚未触发的状态重置
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimerLocked()
}

func (f *Form) stopTimerLocked() {
	f.resetGen++
	if f.resetTimer != nil {
		f.resetTimer.Stop()
		f.resetTimer = nil
	}
}
