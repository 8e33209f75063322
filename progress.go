package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// progressPrinter 把缓存下载进度渲染为单行刷新的文本。
type progressPrinter struct {
	out io.Writer
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

// Report 满足 cache.ProgressFunc；total 未知时为 -1，只显示已下载字节数。
func (p *progressPrinter) Report(blocks int64, blockSize int, total int64) {
	done := blocks * int64(blockSize)
	if total >= 0 && done > total {
		done = total
	}

	if total <= 0 {
		fmt.Fprintf(p.out, "\rDL %s", humanize.Bytes(uint64(done)))
		return
	}
	percentage := int(float64(done) / float64(total) * 100)
	fmt.Fprintf(p.out, "\rDL %3d%% %s / %s", percentage, humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)))
	if done >= total {
		fmt.Fprintln(p.out)
	}
}
