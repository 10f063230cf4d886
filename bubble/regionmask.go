// RegionMask: array-backed interval tree for overlap queries against a
// set of reference intervals.

package bubble

import "sort"

type interval struct {
	start int
	end   int
}

type intervalTreeNode struct {
	interval interval
	maxend   int
}

type intervalTree []intervalTreeNode

// RegionMask answers overlap queries against a frozen set of reference
// intervals, used by BuildFromVCF to detect and skip VCF entries whose
// called region overlaps a bubble already placed (VCF-only
// builder; replaces a running last-end cursor with an overlap query that
// tolerates out-of-order entries).
type RegionMask struct {
	intervals []interval
	tree      intervalTree
	frozen    bool
}

// Add records an interval. Intervals added after Freeze are not seen by
// Overlaps until Freeze is called again.
func (m *RegionMask) Add(start, end int) {
	m.intervals = append(m.intervals, interval{start, end})
}

// Freeze builds the interval tree over every interval added so far.
func (m *RegionMask) Freeze() {
	in := append([]interval(nil), m.intervals...)
	if len(in) == 0 {
		m.tree = nil
		m.frozen = true
		return
	}
	sort.Slice(in, func(i, j int) bool { return in[i].start < in[j].start })
	size := 1
	for size < len(in) {
		size *= 2
	}
	tree := make(intervalTree, size)
	for i := range tree {
		tree[i].maxend = -1
	}
	tree.importSlice(0, in)
	m.tree = tree
	m.frozen = true
}

// Overlaps reports whether [start,end] overlaps any interval added before
// the most recent Freeze. Panics if called before Freeze (a construction-order bug, not a
// runtime condition callers should handle).
func (m *RegionMask) Overlaps(start, end int) bool {
	if !m.frozen {
		panic("bug: RegionMask.Overlaps called before Freeze")
	}
	return m.tree.check(0, interval{start, end})
}

func (t intervalTree) check(root int, q interval) bool {
	return root < len(t) &&
		t[root].maxend >= q.start &&
		((t[root].interval.start <= q.end && t[root].interval.end >= q.start) ||
			t.check(root*2+1, q) ||
			t.check(root*2+2, q))
}

func (t intervalTree) importSlice(root int, in []interval) int {
	mid := len(in) / 2
	node := intervalTreeNode{interval: in[mid], maxend: in[mid].end}
	if mid > 0 {
		if end := t.importSlice(root*2+1, in[0:mid]); end > node.maxend {
			node.maxend = end
		}
	}
	if mid+1 < len(in) {
		if end := t.importSlice(root*2+2, in[mid+1:]); end > node.maxend {
			node.maxend = end
		}
	}
	t[root] = node
	return node.maxend
}
