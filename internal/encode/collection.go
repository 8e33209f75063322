package encode

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/encode-hub/encode-hub/internal/cache"
	"github.com/encode-hub/encode-hub/internal/metrics"
)

// Collection 是根目录下的一个 wgEncode<Name> 子目录。文件列表在首次访问时才
// 下载并解析，每个实例最多解析一次；解析失败时保持未填充状态，下次访问重试。
type Collection struct {
	// Name 是去掉 wgEncode 前缀后的集合名。
	Name string
	// URL 是集合目录的远端地址。
	URL string
	// CachePath 是集合目录相对于缓存根目录的路径。
	CachePath string

	store  *cache.Store
	logger logrus.FieldLogger

	mu        sync.Mutex
	populated bool
	files     []*File
	byName    map[string]*File
}

func newCollection(root, name string, store *cache.Store, logger logrus.FieldLogger) *Collection {
	dir := collectionPrefix + name
	return &Collection{
		Name:      name,
		URL:       root + "/" + dir,
		CachePath: dir,
		store:     store,
		logger:    logger,
	}
}

// ManifestPath 返回 files.txt 相对于缓存根目录的路径。
func (c *Collection) ManifestPath() string {
	return path.Join(c.CachePath, manifestFile)
}

// Populated 报告 manifest 是否已解析。
func (c *Collection) Populated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.populated
}

// Files 按 manifest 顺序返回全部文件记录（包括短名冲突的记录）。
func (c *Collection) Files(ctx context.Context) ([]*File, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*File(nil), c.files...), nil
}

// File 按短名查找文件；短名冲突时返回 manifest 中靠后的记录。
func (c *Collection) File(ctx context.Context, name string) (*File, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	file, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("file %q in collection %s: %w", name, c.Name, ErrNotFound)
	}
	return file, nil
}

// Less 按集合名排序。
func (c *Collection) Less(other *Collection) bool {
	return c.Name < other.Name
}

// SortByName 原地按名称排序。
func SortByName(collections []*Collection) {
	sort.SliceStable(collections, func(i, j int) bool {
		return collections[i].Less(collections[j])
	})
}

func (c *Collection) ensure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populated {
		return nil
	}

	files, byName, err := c.load(ctx)
	metrics.RecordManifest(c.Name, len(files), err)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"action":     "manifest_parse",
			"collection": c.Name,
		}).WithError(err).Warn("manifest_failed")
		return fmt.Errorf("collection %s: %w", c.Name, err)
	}

	c.files = files
	c.byName = byName
	c.populated = true
	c.logger.WithFields(logrus.Fields{
		"action":     "manifest_parse",
		"collection": c.Name,
		"files":      len(files),
	}).Debug("manifest_loaded")
	return nil
}

func (c *Collection) load(ctx context.Context) ([]*File, map[string]*File, error) {
	local, err := c.store.Fetch(ctx, c.URL+"/"+manifestFile, c.ManifestPath(), false)
	if err != nil {
		return nil, nil, err
	}
	fh, err := os.Open(local)
	if err != nil {
		return nil, nil, err
	}
	defer fh.Close()

	entries, err := parseManifest(c.Name, fh)
	if err != nil {
		return nil, nil, err
	}

	files := make([]*File, 0, len(entries))
	byName := make(map[string]*File, len(entries))
	for _, entry := range entries {
		name, err := shortName(c.Name, entry.filename())
		if err != nil {
			return nil, nil, err
		}
		file := newFile(c, name, entry)
		files = append(files, file)
		byName[name] = file
	}
	return files, byName, nil
}
