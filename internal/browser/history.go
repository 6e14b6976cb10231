package browser

// History is back/forward navigation over folder paths: two stacks around the current path
type History struct {
	back    []string
	forward []string
	current string
}

func NewHistory(start string) *History {
	return &History{current: start}
}

func (h *History) Current() string {
	return h.current
}

// Visit moves to path and forgets the forward stack. Visiting the current path changes nothing
func (h *History) Visit(path string) {
	if path == h.current {
		return
	}
	h.back = append(h.back, h.current)
	h.forward = h.forward[:0]
	h.current = path
}

func (h *History) Back() (string, bool) {
	if len(h.back) == 0 {
		return h.current, false
	}
	h.forward = append(h.forward, h.current)
	h.current = h.back[len(h.back)-1]
	h.back = h.back[:len(h.back)-1]
	return h.current, true
}

func (h *History) Forward() (string, bool) {
	if len(h.forward) == 0 {
		return h.current, false
	}
	h.back = append(h.back, h.current)
	h.current = h.forward[len(h.forward)-1]
	h.forward = h.forward[:len(h.forward)-1]
	return h.current, true
}

func (h *History) CanBack() bool    { return len(h.back) > 0 }
func (h *History) CanForward() bool { return len(h.forward) > 0 }
