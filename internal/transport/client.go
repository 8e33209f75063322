// Package transport 提供访问 ENCODE 上游的无状态 HTTP 客户端，在边界处把
// 非 2xx 响应转换为 ErrNotRetrievable，供磁盘缓存与文件记录共享。
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/encode-hub/encode-hub/internal/version"
)

// DefaultTimeout 是未配置 UpstreamTimeout 时的整体请求超时。
const DefaultTimeout = 5 * time.Minute

// ErrNotRetrievable 表示远端资源无法获取（网络失败或非成功状态码）。
var ErrNotRetrievable = errors.New("resource not retrievable")

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   16,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// StatusError 记录上游返回的非成功状态码。
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Status)
}

// Is 让 errors.Is(err, ErrNotRetrievable) 对状态码错误成立。
func (e *StatusError) Is(target error) bool {
	return target == ErrNotRetrievable
}

// Response 是一次成功 GET 的正文与长度（未知时 Size 为 -1）。
type Response struct {
	Body io.ReadCloser
	Size int64
}

// Client 包装共享 http.Client；零值不可用，请使用 NewClient。
type Client struct {
	http *http.Client
}

// NewClient 返回使用共享 Transport 的客户端，timeout<=0 时使用 DefaultTimeout。
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport.Clone(),
		},
	}
}

// WithHTTPClient 使用调用方提供的 http.Client（测试中注入 httptest 客户端）。
func WithHTTPClient(c *http.Client) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{http: c}
}

// Timeout returns the overall request timeout of the underlying client.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// Open 发起 GET 请求。成功时调用方负责关闭 Body；失败时 Body 已被关闭。
func (c *Client) Open(ctx context.Context, rawURL string) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", rawURL, ErrNotRetrievable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	return &Response{Body: resp.Body, Size: resp.ContentLength}, nil
}
