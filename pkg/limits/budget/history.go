package budget

// history is a fixed-capacity ring of usage records. Oldest entries are
// evicted first.
type history struct {
	buf   []Usage
	start int
	count int
}

func newHistory(size int) *history {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &history{buf: make([]Usage, size)}
}

func (h *history) add(u Usage) {
	if h.count < len(h.buf) {
		h.buf[(h.start+h.count)%len(h.buf)] = u
		h.count++
		return
	}
	h.buf[h.start] = u
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) len() int {
	return h.count
}

// filter returns matching entries oldest first. With a positive limit only
// the newest limit matches are kept.
func (h *history) filter(f HistoryFilter) []Usage {
	var out []Usage
	for i := 0; i < h.count; i++ {
		u := &h.buf[(h.start+i)%len(h.buf)]
		if f.match(u) {
			out = append(out, *u)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
