package encode

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	manifestFile = "files.txt"
	filenameKey  = "filename"
	typeKey      = "type"
)

// files.txt 中唯一已知的畸形记录：属性列里混入了一个没有 "=" 的字段。
const (
	knownBadFilename = "wgEncodeCshlLongRnaSeqSknshraCellPapFastqRd2Rep1.fastq.gz"
	knownBadField    = "wgEncodeCshlLongRnaSeqSknshraCellPapFastqRd2Rep1"
)

type manifestEntry struct {
	keys  []string
	attrs map[string]string
}

func (e manifestEntry) filename() string {
	return e.attrs[filenameKey]
}

// parseManifest 逐行解析 "filename<TAB>k1=v1; k2=v2"，空行跳过。
// 结果按文件中出现的顺序排列，每条记录的 filename 属性排在最后。
func parseManifest(collection string, r io.Reader) ([]manifestEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var entries []manifestEntry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseManifestLine(collection, line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", manifestFile, lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", manifestFile, err)
	}
	return entries, nil
}

func parseManifestLine(collection, line string) (manifestEntry, error) {
	columns := strings.Split(line, "\t")
	if len(columns) != 2 {
		return manifestEntry{}, invariantf(collection, "", "expected 2 tab-separated columns, got %d", len(columns))
	}
	filename, rawAttrs := columns[0], columns[1]

	entry := manifestEntry{attrs: make(map[string]string)}
	for _, field := range strings.Split(rawAttrs, ";") {
		field = strings.TrimSpace(field)
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			if filename == knownBadFilename && field == knownBadField {
				continue
			}
			return manifestEntry{}, invariantf(collection, filename, "malformed attribute %q", field)
		}
		if key == filenameKey {
			return manifestEntry{}, invariantf(collection, filename, "explicit %s attribute", filenameKey)
		}
		if _, seen := entry.attrs[key]; !seen {
			entry.keys = append(entry.keys, key)
		}
		entry.attrs[key] = value
	}
	entry.keys = append(entry.keys, filenameKey)
	entry.attrs[filenameKey] = filename
	return entry, nil
}
