package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// Options Enricher 和 Reporter 共用的调用参数
type Options struct {
	MaxContentChars int
	CacheSize       int
	MaxRetries      int
	// RetryDelay 429 重试的初始等待时间，之后按 2 的幂增长
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxContentChars <= 0 {
		o.MaxContentChars = 6000
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 1024
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	return o
}

// NewLimiter 按每分钟请求数和突发数创建 LLM 限流器
func NewLimiter(rpm, burst int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

// caller 带限流和 429 重试的模型调用
type caller struct {
	cm         model.BaseChatModel
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

func newCaller(cm model.BaseChatModel, limiter *rate.Limiter, opts Options) *caller {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &caller{
		cm:         cm,
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.RetryDelay,
	}
}

func (c *caller) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	for i := 0; ; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.cm.Generate(ctx, messages)
		if err == nil {
			return resp.Content, nil
		}
		if !isRateLimited(err) || i >= c.maxRetries {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.baseDelay * time.Duration(1<<i)):
		}
	}
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}

func hashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
