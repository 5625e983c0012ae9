package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// =============================================================================
// Client — 告警webhook通知客户端
// 引擎侧只负责把告警事件投递出去，消息的最终送达由外部通知网关处理
// =============================================================================

// Client webhook通知客户端
type Client struct {
	webhookURL string
	http       *resty.Client
}

// NewClient 创建通知客户端。webhookURL为空时返回nil，通知功能降级关闭
func NewClient(webhookURL string, timeout time.Duration) *Client {
	if webhookURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		webhookURL: webhookURL,
		http: resty.New().
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
}

// AlertEvent 告警事件载荷
type AlertEvent struct {
	AlertID     string    `json:"alert_id"`
	Severity    string    `json:"severity"`
	Module      string    `json:"module"`
	EntityRef   string    `json:"entity_ref"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// SendAlert 投递告警创建事件
func (c *Client) SendAlert(ctx context.Context, event *AlertEvent) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(c.webhookURL)
	if err != nil {
		return fmt.Errorf("post alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
