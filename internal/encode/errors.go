package encode

import (
	"errors"
	"fmt"
)

// ErrNotFound 表示按名称查找的集合、文件或属性不存在。
var ErrNotFound = errors.New("not found")

// ErrUnsupportedType 表示文件的 type 属性不能解析为区间索引。
var ErrUnsupportedType = errors.New("unsupported file type")

// InvariantError 描述上游数据违反了目录结构约定（manifest 格式、命名规则等）。
type InvariantError struct {
	Collection string
	Filename   string
	Detail     string
}

func (e *InvariantError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("collection %s: %s", e.Collection, e.Detail)
	}
	return fmt.Sprintf("collection %s, file %s: %s", e.Collection, e.Filename, e.Detail)
}

func invariantf(collection, filename, format string, args ...any) error {
	return &InvariantError{
		Collection: collection,
		Filename:   filename,
		Detail:     fmt.Sprintf(format, args...),
	}
}
