package encode

import "strings"

// collectionPrefix 是目录名与文件名共享的前缀。
const collectionPrefix = "wgEncode"

// namingRule 描述一类集合的文件短名前缀长度；按表顺序匹配，首个命中者生效。
type namingRule struct {
	name   string
	match  func(collection string) bool
	prefix func(collection string) int
}

func fixedPrefix(n int) func(string) int {
	return func(string) int { return n }
}

// namingRules 列出不遵循 wgEncode<collection> 前缀的集合；Uniform 系列的文件名省略了集合名末尾的 "Uniform"。
var namingRules = []namingRule{
	{
		name:  "uniform",
		match: func(c string) bool { return strings.HasSuffix(c, "Uniform") },
		prefix: func(c string) int {
			return len(collectionPrefix) + len(c) - len("Uniform")
		},
	},
	{
		name:   "gencode",
		match:  func(c string) bool { return strings.HasPrefix(c, "Gencode") },
		prefix: fixedPrefix(15),
	},
	{
		name: "mapability",
		match: func(c string) bool {
			return strings.HasSuffix(c, "Mapability") || strings.Contains(c, "RegMark")
		},
		prefix: fixedPrefix(8),
	},
	{
		name:   "tfbs-clustered",
		match:  func(c string) bool { return strings.HasSuffix(c, "TfbsClustered") },
		prefix: fixedPrefix(15),
	},
	{
		name:   "uw5c",
		match:  func(c string) bool { return c == "Uw5C" },
		prefix: fixedPrefix(12),
	},
	{
		name:   "awg-dnase-master-sites",
		match:  func(c string) bool { return c == "AwgDnaseMasterSites" },
		prefix: fixedPrefix(14),
	},
}

// shortName 从 filename 推导文件在集合内的短名：去掉集合前缀后截断到第一个 "."。
// 未命中任何规则时文件名必须以 wgEncode<collection> 开头。
func shortName(collection, filename string) (string, error) {
	prefix := -1
	for _, rule := range namingRules {
		if rule.match(collection) {
			prefix = rule.prefix(collection)
			break
		}
	}
	if prefix < 0 {
		full := collectionPrefix + collection
		if !strings.HasPrefix(filename, full) {
			return "", invariantf(collection, filename, "file name does not start with %s", full)
		}
		prefix = len(full)
	}

	var rest string
	if prefix < len(filename) {
		rest = filename[prefix:]
	}
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		rest = rest[:i]
	}
	return rest, nil
}
