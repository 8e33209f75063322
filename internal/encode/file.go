package encode

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/encode-hub/encode-hub/internal/cache"
	"github.com/encode-hub/encode-hub/internal/gzipstream"
	"github.com/encode-hub/encode-hub/internal/intervals"
)

// intervalTypes 是可以按 BED 解析的 type 属性。
var intervalTypes = map[string]bool{
	"bed":        true,
	"narrowPeak": true,
	"broadPeak":  true,
}

// File 是 manifest 中的一条记录，以及它在远端与本地缓存中的位置。
type File struct {
	// Name 是集合内的短名，由命名规则从文件名推导。
	Name string
	// URL 是远端地址：<collection URL>/<filename>。
	URL string
	// CachePath 是相对于缓存根目录的路径：wgEncode<collection>/<filename>。
	CachePath string
	// LocalPath 是缓存中的绝对路径，文件不一定已经下载。
	LocalPath string
	// LocalURL 是 file:// + LocalPath。
	LocalURL string

	collection string
	keys       []string
	attrs      map[string]string
	store      *cache.Store
}

func newFile(c *Collection, name string, entry manifestEntry) *File {
	filename := entry.filename()
	rel := c.CachePath + "/" + filename
	local := c.store.LocalPath(rel)
	return &File{
		Name:       name,
		URL:        c.URL + "/" + filename,
		CachePath:  rel,
		LocalPath:  local,
		LocalURL:   "file://" + local,
		collection: c.Name,
		keys:       entry.keys,
		attrs:      entry.attrs,
		store:      c.store,
	}
}

// Collection 返回所属集合名。
func (f *File) Collection() string {
	return f.collection
}

// Filename 返回远端文件名。
func (f *File) Filename() string {
	return f.attrs[filenameKey]
}

// Type 返回 type 属性，缺失时为空串。
func (f *File) Type() string {
	return f.attrs[typeKey]
}

// Attr 返回属性值；不存在时返回 ErrNotFound。
func (f *File) Attr(key string) (string, error) {
	value, ok := f.attrs[key]
	if !ok {
		return "", fmt.Errorf("attribute %q of %s: %w", key, f.Filename(), ErrNotFound)
	}
	return value, nil
}

// Keys 按 manifest 中的顺序返回属性名，filename 总在最后。
func (f *File) Keys() []string {
	return append([]string(nil), f.keys...)
}

// Attrs 返回属性的副本。
func (f *File) Attrs() map[string]string {
	out := make(map[string]string, len(f.attrs))
	for k, v := range f.attrs {
		out[k] = v
	}
	return out
}

// Cached 报告文件是否已在本地缓存中。
func (f *File) Cached() bool {
	return f.store.Exists(f.CachePath)
}

// Fetch 把文件下载到缓存（已存在且 force 为假时不访问网络），返回 f 本身便于链式调用。
func (f *File) Fetch(ctx context.Context, force bool) (*File, error) {
	if _, err := f.store.Fetch(ctx, f.URL, f.CachePath, force); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenBinary 打开原始字节流：已缓存时读本地文件，否则直接流式读取远端，不写缓存。
func (f *File) OpenBinary(ctx context.Context) (*Stream, error) {
	if f.Cached() {
		fh, err := os.Open(f.LocalPath)
		if err != nil {
			return nil, err
		}
		return newStream(fh, true), nil
	}

	resp, err := f.store.Client().Open(ctx, f.URL)
	if err != nil {
		return nil, err
	}
	return newStream(resp.Body, false), nil
}

// OpenText 打开解压后的内容流；文件名以 .gz 结尾时透明解压。
// 远端响应体无法回退，因此使用 gzipstream 逐块解压第一个 gzip 成员。
func (f *File) OpenText(ctx context.Context) (*Stream, error) {
	stream, err := f.OpenBinary(ctx)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(f.Filename(), ".gz") {
		return stream, nil
	}

	if stream.Cached() {
		zr, err := gzip.NewReader(stream.reader)
		if err != nil {
			_ = stream.Close()
			return nil, fmt.Errorf("open %s: %w", f.LocalPath, err)
		}
		stream.wrap(zr, zr)
		return stream, nil
	}

	zr := gzipstream.NewReader(stream.reader)
	stream.wrap(zr, zr)
	return stream, nil
}

// ReadIntervals 把 bed/narrowPeak/broadPeak 文件解析为区间索引，其他类型返回 ErrUnsupportedType。
func (f *File) ReadIntervals(ctx context.Context) (*intervals.Index, error) {
	if !intervalTypes[f.Type()] {
		return nil, fmt.Errorf("%s has type %q: %w", f.Filename(), f.Type(), ErrUnsupportedType)
	}

	var index *intervals.Index
	err := WithStream(ctx, f.OpenText, func(s *Stream) error {
		var err error
		index, err = intervals.FromBED(s)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read intervals from %s: %w", f.Filename(), err)
	}
	return index, nil
}
