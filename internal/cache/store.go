package cache

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/encode-hub/encode-hub/internal/transport"
)

// DefaultBlockSize 是下载时每次读取并上报进度的块大小。
const DefaultBlockSize = 8 * 1024

// ProgressFunc 在下载过程中被同步调用：blocks 为已传输的块数，blockSize 为块大小，
// total 为远端声明的总大小（未知时为 -1）。开始传输前会以 blocks=0 调用一次。
type ProgressFunc func(blocks int64, blockSize int, total int64)

// Options 控制 Store 的依赖注入。
type Options struct {
	// Client 用于回源；为空时使用 transport.NewClient(0)。
	Client *transport.Client
	// Progress 为可选的进度回调，缓存命中时不会被调用。
	Progress ProgressFunc
	// Logger 为空时丢弃日志。
	Logger logrus.FieldLogger
	// BlockSize 为空时使用 DefaultBlockSize。
	BlockSize int
}

// ErrInvalidPath 表示相对路径为空或逃逸出缓存根目录。
var ErrInvalidPath = errors.New("invalid cache path")

// ErrNotDirectory 表示缓存根路径已存在但不是目录。
var ErrNotDirectory = errors.New("cache root is not a directory")
