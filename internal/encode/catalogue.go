package encode

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/encode-hub/encode-hub/internal/cache"
	"github.com/encode-hub/encode-hub/internal/config"
	"github.com/encode-hub/encode-hub/internal/logging"
	"github.com/encode-hub/encode-hub/internal/transport"
)

const (
	indexFile       = "index.html"
	collectionsFile = "collections.json"
)

var collectionLink = regexp.MustCompile(`<a href="wgEncode([^"]+)/">`)

// Options 控制 Catalogue 的缓存位置、上游地址与依赖注入，零值使用默认配置。
type Options struct {
	// CacheDir 默认为 ~/.encode-hub。
	CacheDir string
	// RootURL 默认为 config.DefaultRootURL，末尾的 "/" 会被去掉。
	RootURL string
	// Progress 在每次真实下载时被调用。
	Progress cache.ProgressFunc
	// Client 为空时使用 transport.NewClient(0)。
	Client *transport.Client
	// Logger 为空时丢弃日志。
	Logger logrus.FieldLogger
}

// Catalogue 是 ENCODE 根目录下全部集合的只读快照；集合名在打开后不再变化。
type Catalogue struct {
	root        string
	store       *cache.Store
	logger      logrus.FieldLogger
	collections []*Collection
	byName      map[string]*Collection
}

// Open 创建缓存目录并发现集合名：优先读取 collections.json 快照，否则下载根索引页并
// 提取 wgEncode* 子目录后写入快照。不会下载任何集合的 manifest。
func Open(ctx context.Context, opts Options) (*Catalogue, error) {
	root := strings.TrimRight(opts.RootURL, "/")
	if root == "" {
		root = config.DefaultRootURL
	}
	dir := opts.CacheDir
	if dir == "" {
		dir = config.DefaultCacheDir
	}
	dir, err := config.ExpandHome(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := cache.NewStore(dir, cache.Options{
		Client:   opts.Client,
		Progress: opts.Progress,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	names, source, err := discover(ctx, store, root)
	if err != nil {
		return nil, err
	}

	cat := &Catalogue{
		root:   root,
		store:  store,
		logger: logger,
		byName: make(map[string]*Collection, len(names)),
	}
	for _, name := range names {
		if _, dup := cat.byName[name]; dup {
			continue
		}
		collection := newCollection(root, name, store, logger)
		cat.collections = append(cat.collections, collection)
		cat.byName[name] = collection
	}

	logger.WithFields(logrus.Fields{
		"action":      "catalogue_open",
		"root":        root,
		"cache_dir":   store.Root(),
		"source":      source,
		"collections": len(cat.collections),
	}).Debug("catalogue_ready")
	return cat, nil
}

func discover(ctx context.Context, store *cache.Store, root string) ([]string, string, error) {
	if store.Exists(collectionsFile) {
		var names []string
		if err := store.LoadJSON(collectionsFile, &names); err != nil {
			return nil, "", err
		}
		return names, collectionsFile, nil
	}

	local, err := store.Fetch(ctx, root, indexFile, false)
	if err != nil {
		return nil, "", fmt.Errorf("fetch catalogue index: %w", err)
	}
	page, err := os.ReadFile(local)
	if err != nil {
		return nil, "", err
	}

	names := parseIndex(page)
	if err := store.StoreJSON(names, collectionsFile); err != nil {
		return nil, "", fmt.Errorf("store collection names: %w", err)
	}
	return names, indexFile, nil
}

// parseIndex 按出现顺序提取 wgEncode<name>/ 链接中的 name，重复的只保留第一次。
func parseIndex(page []byte) []string {
	names := []string{}
	seen := make(map[string]struct{})
	for _, match := range collectionLink.FindAllSubmatch(page, -1) {
		name := string(match[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// RootURL 返回根目录地址。
func (c *Catalogue) RootURL() string {
	return c.root
}

// CacheDir 返回缓存根目录的绝对路径。
func (c *Catalogue) CacheDir() string {
	return c.store.Root()
}

// Collections 按索引页顺序返回集合；每次调用返回新的切片。
func (c *Catalogue) Collections() []*Collection {
	return append([]*Collection(nil), c.collections...)
}

// Names 按索引页顺序返回集合名。
func (c *Catalogue) Names() []string {
	names := make([]string, len(c.collections))
	for i, collection := range c.collections {
		names[i] = collection.Name
	}
	return names
}

// Collection 按名称查找集合；不存在时返回 ErrNotFound。
func (c *Catalogue) Collection(name string) (*Collection, error) {
	collection, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	return collection, nil
}
