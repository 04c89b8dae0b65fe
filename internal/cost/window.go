package cost

// window 为定长环形缓冲区，写满后淘汰最旧样本。
type window struct {
	buf   []CostSample
	start int
	size  int
}

func newWindow(capacity int) *window {
	if capacity <= 0 {
		capacity = 1
	}
	return &window{buf: make([]CostSample, capacity)}
}

func (w *window) push(s CostSample) {
	capacity := len(w.buf)
	if w.size < capacity {
		w.buf[(w.start+w.size)%capacity] = s
		w.size++
		return
	}
	w.buf[w.start] = s
	w.start = (w.start + 1) % capacity
}

func (w *window) len() int {
	return w.size
}

// snapshot 按从旧到新的顺序返回副本。
func (w *window) snapshot() []CostSample {
	out := make([]CostSample, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
