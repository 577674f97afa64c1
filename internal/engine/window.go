package engine

// Rolling-window state keyed by entity. Entries are inserted in
// non-decreasing timestamp order, so pruning is always a prefix trim.
// Every window is pruned before a threshold comparison; nothing else
// removes entries except the engine-level retention caps.

// tsWindow tracks per-key ordered timestamp sequences.
type tsWindow struct {
	byKey map[string][]int64
}

func newTSWindow() *tsWindow {
	return &tsWindow{byKey: make(map[string][]int64)}
}

// record appends ts to the key's sequence.
func (w *tsWindow) record(key string, ts int64) {
	w.byKey[key] = append(w.byKey[key], ts)
}

// prune drops all entries strictly older than cutoff.
func (w *tsWindow) prune(key string, cutoff int64) {
	seq := w.byKey[key]
	i := 0
	for i < len(seq) && seq[i] < cutoff {
		i++
	}
	if i > 0 {
		w.byKey[key] = seq[i:]
	}
}

// count returns the number of entries currently in the window.
func (w *tsWindow) count(key string) int {
	return len(w.byKey[key])
}

func (w *tsWindow) reset() {
	w.byKey = make(map[string][]int64)
}

// byteEntry is one weighted sample in a byteWindow.
type byteEntry struct {
	ts    int64
	bytes int64
}

// byteWindow is the byte-weighted variant: it sums a numeric payload
// instead of counting entries.
type byteWindow struct {
	byKey map[string][]byteEntry
}

func newByteWindow() *byteWindow {
	return &byteWindow{byKey: make(map[string][]byteEntry)}
}

func (w *byteWindow) record(key string, ts, bytes int64) {
	w.byKey[key] = append(w.byKey[key], byteEntry{ts: ts, bytes: bytes})
}

func (w *byteWindow) prune(key string, cutoff int64) {
	seq := w.byKey[key]
	i := 0
	for i < len(seq) && seq[i].ts < cutoff {
		i++
	}
	if i > 0 {
		w.byKey[key] = seq[i:]
	}
}

// sum returns the byte total currently in the window.
func (w *byteWindow) sum(key string) int64 {
	var total int64
	for _, e := range w.byKey[key] {
		total += e.bytes
	}
	return total
}

func (w *byteWindow) reset() {
	w.byKey = make(map[string][]byteEntry)
}

// portWindow tracks distinct destination ports per key with the timestamp
// each port was last seen. Ports age out individually by last-seen time.
type portWindow struct {
	byKey map[string]map[string]int64
}

func newPortWindow() *portWindow {
	return &portWindow{byKey: make(map[string]map[string]int64)}
}

func (w *portWindow) record(key, port string, ts int64) {
	ports := w.byKey[key]
	if ports == nil {
		ports = make(map[string]int64)
		w.byKey[key] = ports
	}
	ports[port] = ts
}

func (w *portWindow) prune(key string, cutoff int64) {
	for port, last := range w.byKey[key] {
		if last < cutoff {
			delete(w.byKey[key], port)
		}
	}
}

// distinct returns the number of ports still inside the window.
func (w *portWindow) distinct(key string) int {
	return len(w.byKey[key])
}

// ports returns up to max port labels for explanation text, sorted for
// deterministic output.
func (w *portWindow) ports(key string, max int) []string {
	set := NewStringSet()
	for port := range w.byKey[key] {
		set.Add(port)
	}
	out := set.Values()
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func (w *portWindow) reset() {
	w.byKey = make(map[string]map[string]int64)
}
