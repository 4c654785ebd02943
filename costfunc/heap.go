package costfunc

type pixelItem struct {
	pixel uint32
	steps int
	seq   uint64
}

// Copied from container/heap - https://golang.org/pkg/container/heap/
// Same trick as the tracker's distance heap: no interface{} conversions.
// Equal distances pop in insertion order.

type pixelHeap []pixelItem

func (h pixelHeap) Len() int { return len(h) }
func (h pixelHeap) Less(i, j int) bool {
	if h[i].steps != h[j].steps {
		return h[i].steps < h[j].steps
	}
	return h[i].seq < h[j].seq
}
func (h pixelHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push pushes the element x onto the heap.
func (h *pixelHeap) Push(x pixelItem) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the minimum element from the heap.
func (h *pixelHeap) Pop() pixelItem {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	last := (*h)[n]
	*h = (*h)[:n]
	return last
}

func (h pixelHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h pixelHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
	return i > i0
}
