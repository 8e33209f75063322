// Package encodetest 提供模拟 ENCODE 下载目录的上游服务器，供各包测试复用。
package encodetest

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

// RootPath 是模拟树在服务器上的挂载路径，与真实地址的路径部分一致。
const RootPath = "/goldenPath/hg19/encodeDCC"

// NarrowPeakBED 是 AwgTfbsUniform 下唯一 narrowPeak 文件解压后的内容。
const NarrowPeakBED = "chr1\t249120411\t249120715\t.\t0\t.\t472\t-1\t4.39\t152\n" +
	"chr13\t41345193\t41345500\t.\t0\t.\t600\t-1\t5.10\t140\n"

// BroadPeakBED 是 BroadHistone 下 broadPeak 文件解压后的内容。
const BroadPeakBED = "track name=H3K4me3\n" +
	"chr2\t1000\t5000\tpeak1\t900\t.\t12.5\t-1\t-1\n" +
	"chr2\t4000\t8000\tpeak2\t800\t.\t10.1\t-1\t-1\n"

// Readme 是 BroadHistone 下未压缩文本文件的内容。
const Readme = "Broad Histone readme\nsecond line\n"

// DefaultCollections 是索引页按出现顺序列出的集合名（去重后）。
var DefaultCollections = []string{"AwgTfbsUniform", "BroadHistone", "CshlLongRnaSeq", "AwgDnaseUniform"}

const indexPage = `<html><body>
<a href="../">Parent Directory</a>
<a href="wgEncodeAwgTfbsUniform/">wgEncodeAwgTfbsUniform/</a>
<a href="wgEncodeBroadHistone/">wgEncodeBroadHistone/</a>
<a href="wgEncodeCshlLongRnaSeq/">wgEncodeCshlLongRnaSeq/</a>
<a href="wgEncodeAwgDnaseUniform/">wgEncodeAwgDnaseUniform/</a>
<a href="wgEncodeBroadHistone/">wgEncodeBroadHistone/</a>
<a href="README.txt">README.txt</a>
</body></html>
`

// Stub 是一个记录请求的 HTTP 上游，按路径返回预置内容，其他路径返回 404。
type Stub struct {
	server   *http.Server
	listener net.Listener
	// URL 是服务器地址；Root 是模拟树根目录的完整地址。
	URL  string
	Root string

	mu       sync.Mutex
	requests []RecordedRequest
	files    map[string][]byte
}

// RecordedRequest 捕获每次请求的方法与路径，便于断言缓存是否访问了网络。
type RecordedRequest struct {
	Method string
	Path   string
}

// New 启动带默认 ENCODE 树的模拟上游，测试结束时自动关闭。
func New(tb testing.TB) *Stub {
	tb.Helper()

	stub := &Stub{files: make(map[string][]byte)}
	stub.populate(tb)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Skipf("unable to start upstream stub listener: %v", err)
	}
	stub.listener = listener
	stub.server = &http.Server{Handler: http.HandlerFunc(stub.serve)}
	stub.URL = "http://" + listener.Addr().String()
	stub.Root = stub.URL + RootPath

	go func() {
		_ = stub.server.Serve(listener)
	}()
	tb.Cleanup(stub.Close)
	return stub
}

// Close 停止服务器，可重复调用。
func (s *Stub) Close() {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if s.server != nil {
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Put 设置 rel（相对于 Root，空串表示索引页）处的内容。
func (s *Stub) Put(rel string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key(rel)] = append([]byte(nil), data...)
}

// Remove 删除 rel 处的内容，之后请求返回 404。
func (s *Stub) Remove(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key(rel))
}

// Requests 返回迄今为止的请求副本。
func (s *Stub) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]RecordedRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

// Hits 返回 rel 被请求的次数。
func (s *Stub) Hits(rel string) int {
	want := RootPath + key(rel)
	count := 0
	for _, req := range s.Requests() {
		if strings.TrimSuffix(req.Path, "/") == strings.TrimSuffix(want, "/") {
			count++
		}
	}
	return count
}

// Paths 返回所有预置路径，按字典序排列。
func (s *Stub) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s *Stub) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path})
	rel, ok := strings.CutPrefix(r.URL.Path, RootPath)
	var data []byte
	var found bool
	if ok {
		data, found = s.files[key(rel)]
	}
	s.mu.Unlock()

	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Stub) populate(tb testing.TB) {
	s.files[key("")] = []byte(indexPage)

	s.files[key("wgEncodeAwgTfbsUniform/files.txt")] = []byte(
		"wgEncodeAwgTfbsHaibH1hescGabpPcr1xUniPk.narrowPeak.gz\tproject=wgEncode; lab=HudsonAlpha; " +
			"composite=wgEncodeAwgTfbsUniform; dataType=ChipSeq; cell=H1-hESC; antibody=GABP; " +
			"type=narrowPeak; md5sum=0f343b0931126a20f133d67c2b018a3b; size=1.2K\n")
	s.files[key("wgEncodeAwgTfbsUniform/wgEncodeAwgTfbsHaibH1hescGabpPcr1xUniPk.narrowPeak.gz")] =
		Gzip(tb, []byte(NarrowPeakBED))

	s.files[key("wgEncodeBroadHistone/files.txt")] = []byte(
		"wgEncodeBroadHistoneGm12878H3k4me3StdPk.broadPeak.gz\tproject=wgEncode; cell=GM12878; antibody=H3K4me3; type=broadPeak\n" +
			"wgEncodeBroadHistoneGm12878H3k4me3StdSig.bigWig\tproject=wgEncode; cell=GM12878; antibody=H3K4me3; type=bigWig\n" +
			"\n" +
			"wgEncodeBroadHistoneReadme.txt\tproject=wgEncode; type=txt\n")
	s.files[key("wgEncodeBroadHistone/wgEncodeBroadHistoneGm12878H3k4me3StdPk.broadPeak.gz")] =
		Gzip(tb, []byte(BroadPeakBED))
	s.files[key("wgEncodeBroadHistone/wgEncodeBroadHistoneReadme.txt")] = []byte(Readme)

	s.files[key("wgEncodeCshlLongRnaSeq/files.txt")] = []byte(
		"wgEncodeCshlLongRnaSeqSknshraCellPapFastqRd2Rep1.fastq.gz\tproject=wgEncode; " +
			"wgEncodeCshlLongRnaSeqSknshraCellPapFastqRd2Rep1; cell=SK-N-SH_RA; type=fastq\n")

	s.files[key("wgEncodeAwgDnaseUniform/files.txt")] = []byte(
		"wgEncodeAwgDnaseUwAg04449UniPk.narrowPeak.gz\tproject=wgEncode; cell=AG04449; type=narrowPeak\n")
}

// Gzip 用单个 gzip 成员压缩 data。
func Gzip(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		tb.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func key(rel string) string {
	return "/" + strings.Trim(rel, "/")
}
