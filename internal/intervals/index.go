// Package intervals builds per-chromosome interval trees from BED-like text.
// Coordinates are zero-based and half-open, as in BED: an interval covers
// [Begin, End). The trees come from github.com/biogo/store/interval.
package intervals

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/store/interval"
)

// Interval is one BED record. Data holds the columns after the third.
type Interval struct {
	Chrom string
	Begin int
	End   int
	Data  []string

	uid uintptr
}

// Overlap implements interval.IntOverlapper with half-open semantics.
func (i *Interval) Overlap(b interval.IntRange) bool {
	return i.Begin < b.End && b.Start < i.End
}

// ID implements interval.IntInterface.
func (i *Interval) ID() uintptr { return i.uid }

// Range implements interval.IntInterface.
func (i *Interval) Range() interval.IntRange {
	return interval.IntRange{Start: i.Begin, End: i.End}
}

type query struct {
	begin, end int
}

func (q query) Overlap(b interval.IntRange) bool {
	return q.begin < b.End && b.Start < q.end
}

// Index maps chromosome names to interval trees.
type Index struct {
	trees map[string]*interval.IntTree
	order []string
	count int
}

// New returns an empty index.
func New() *Index {
	return &Index{trees: make(map[string]*interval.IntTree)}
}

// FromBED reads the whole of r and indexes every record. Blank lines and
// lines starting with "#", "track" or "browser" are skipped.
func FromBED(r io.Reader) (*Index, error) {
	idx := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("bed line %d: expected at least 3 columns, got %d", lineNo, len(fields))
		}
		begin, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bed line %d: begin: %w", lineNo, err)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("bed line %d: end: %w", lineNo, err)
		}
		if err := idx.add(fields[0], begin, end, fields[3:]); err != nil {
			return nil, fmt.Errorf("bed line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read bed: %w", err)
	}

	for _, tree := range idx.trees {
		tree.AdjustRanges()
	}
	return idx, nil
}

// Add inserts a single interval; begin must be smaller than end.
func (x *Index) Add(chrom string, begin, end int, data []string) error {
	if err := x.add(chrom, begin, end, data); err != nil {
		return err
	}
	x.trees[chrom].AdjustRanges()
	return nil
}

func (x *Index) add(chrom string, begin, end int, data []string) error {
	if begin >= end {
		return fmt.Errorf("empty or inverted interval [%d, %d)", begin, end)
	}
	tree, ok := x.trees[chrom]
	if !ok {
		tree = &interval.IntTree{}
		x.trees[chrom] = tree
		x.order = append(x.order, chrom)
	}
	x.count++
	iv := &Interval{
		Chrom: chrom,
		Begin: begin,
		End:   end,
		Data:  data,
		uid:   uintptr(x.count),
	}
	return tree.Insert(iv, true)
}

// Len returns the number of indexed intervals.
func (x *Index) Len() int {
	return x.count
}

// Chromosomes returns chromosome names in first-seen order.
func (x *Index) Chromosomes() []string {
	return append([]string(nil), x.order...)
}

// Search returns the intervals on chrom that overlap [begin, end), sorted by
// begin then end. An unknown chromosome yields no intervals.
func (x *Index) Search(chrom string, begin, end int) []*Interval {
	tree, ok := x.trees[chrom]
	if !ok || begin >= end {
		return nil
	}
	hits := tree.Get(query{begin: begin, end: end})
	result := make([]*Interval, 0, len(hits))
	for _, hit := range hits {
		result = append(result, hit.(*Interval))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Begin != result[j].Begin {
			return result[i].Begin < result[j].Begin
		}
		if result[i].End != result[j].End {
			return result[i].End < result[j].End
		}
		return result[i].uid < result[j].uid
	})
	return result
}

// SearchPoint returns the intervals on chrom that contain pos.
func (x *Index) SearchPoint(chrom string, pos int) []*Interval {
	return x.Search(chrom, pos, pos+1)
}
