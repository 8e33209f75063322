package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/encode-hub/encode-hub/internal/logging"
	"github.com/encode-hub/encode-hub/internal/metrics"
	"github.com/encode-hub/encode-hub/internal/transport"
)

// Store 以 root 为根目录镜像远端路径，整个 Catalogue 共享一份实例。
type Store struct {
	root      string
	client    *transport.Client
	progress  ProgressFunc
	logger    logrus.FieldLogger
	blockSize int
}

// NewStore 确保 root 目录存在后构建缓存；root 指向普通文件时返回 ErrNotDirectory。
func NewStore(root string, opts Options) (*Store, error) {
	if root == "" {
		return nil, errors.New("cache root required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("%s: %w", abs, ErrNotDirectory)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("stat cache root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	client := opts.Client
	if client == nil {
		client = transport.NewClient(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	return &Store{
		root:      abs,
		client:    client,
		progress:  opts.Progress,
		logger:    logger,
		blockSize: blockSize,
	}, nil
}

// Root 返回缓存根目录的绝对路径。
func (s *Store) Root() string {
	return s.root
}

// Client 返回回源所用的 transport 客户端，文件记录直接流式读取远端时复用。
func (s *Store) Client() *transport.Client {
	return s.client
}

// Fetch 在 rel 不存在或 force 为真时把 sourceURL 下载到 rel，并返回其绝对路径；
// 命中时不访问网络也不触发进度回调。
func (s *Store) Fetch(ctx context.Context, sourceURL, rel string, force bool) (string, error) {
	target, err := s.path(rel)
	if err != nil {
		return "", err
	}

	if !force && isRegularFile(target) {
		metrics.RecordCacheHit()
		s.logger.WithFields(logging.FetchFields(sourceURL, rel, true)).Debug("cache_hit")
		return target, nil
	}
	metrics.RecordCacheMiss(force)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	started := time.Now()
	resp, err := s.client.Open(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	file, err := os.Create(target)
	if err != nil {
		return "", err
	}

	written, err := s.copyWithProgress(ctx, file, resp.Body, resp.Size)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("download %s: %w", sourceURL, err)
	}

	metrics.RecordDownload(written, time.Since(started))
	fields := logging.FetchFields(sourceURL, rel, false)
	fields["bytes"] = written
	fields["forced"] = force
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	s.logger.WithFields(fields).Info("cache_fetch")
	return target, nil
}

// Exists 仅检查 rel 是否存在，不访问网络。
func (s *Store) Exists(rel string) bool {
	target, err := s.path(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(target)
	return err == nil
}

// LocalPath 拼接 rel 在缓存中的绝对路径，不检查文件是否存在。
func (s *Store) LocalPath(rel string) string {
	target, err := s.path(rel)
	if err != nil {
		return filepath.Join(s.root, filepath.FromSlash(rel))
	}
	return target
}

// StoreJSON 把 v 序列化为 JSON 写入 rel，必要时创建父目录。
func (s *Store) StoreJSON(v any, rel string) error {
	target, err := s.path(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return os.WriteFile(target, data, 0o644)
}

// LoadJSON 从 rel 读取 JSON 并解码到 v。
func (s *Store) LoadJSON(rel string, v any) error {
	target, err := s.path(rel)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", rel, err)
	}
	return nil
}

// Erase 删除 rel；文件不存在时返回 os.ErrNotExist 类错误。
func (s *Store) Erase(rel string) error {
	target, err := s.path(rel)
	if err != nil {
		return err
	}
	return os.Remove(target)
}

func (s *Store) path(rel string) (string, error) {
	cleaned := path.Clean("/" + filepath.ToSlash(rel))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("%q: %w", rel, ErrInvalidPath)
	}

	filePath := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if !strings.HasPrefix(filePath, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrInvalidPath)
	}
	return filePath, nil
}

func (s *Store) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64) (int64, error) {
	var (
		copied int64
		blocks int64
	)
	s.report(blocks, total)

	buf := make([]byte, s.blockSize)
	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return copied, err
			}
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
			blocks++
			s.report(blocks, total)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

func (s *Store) report(blocks, total int64) {
	if s.progress != nil {
		s.progress(blocks, s.blockSize, total)
	}
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
