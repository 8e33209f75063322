package encode

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
)

// Stream 持有一个读取器以及其下层所有需要关闭的资源（文件句柄、HTTP 响应体、解压器）。
// Close 按获取的逆序关闭全部资源，可重复调用。
type Stream struct {
	reader  io.Reader
	closers []io.Closer
	cached  bool

	mu     sync.Mutex
	closed bool
}

var _ io.ReadCloser = (*Stream)(nil)

func newStream(rc io.ReadCloser, cached bool) *Stream {
	return &Stream{reader: rc, closers: []io.Closer{rc}, cached: cached}
}

// wrap 让 r 成为新的读取入口，并把 c 追加到关闭链末尾（最先关闭）。
func (s *Stream) wrap(r io.Reader, c io.Closer) {
	s.reader = r
	if c != nil {
		s.closers = append(s.closers, c)
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, os.ErrClosed
	}
	return s.reader.Read(p)
}

// Close 关闭所有资源并返回遇到的第一个错误。
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Cached 报告数据是否来自本地缓存（否则直接来自远端）。
func (s *Stream) Cached() bool {
	return s.cached
}

// WithStream 调用 open 打开流，把它交给 fn，并在任何退出路径上关闭流。
// 典型用法：WithStream(ctx, file.OpenText, func(s *Stream) error { ... })。
func WithStream(ctx context.Context, open func(context.Context) (*Stream, error), fn func(*Stream) error) (err error) {
	stream, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, stream.Close())
	}()
	return fn(stream)
}
