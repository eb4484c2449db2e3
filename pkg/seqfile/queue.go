package seqfile

import "sync"

// queue holds pending file numbers in FIFO order along with the high-water
// mark. The mutex is not reentrant; no method calls another locking method.
type queue struct {
	mu    sync.Mutex
	files []int
	last  int

	// reserved numbers not yet enqueued; merges leave their files alone
	reserved map[int]struct{}
}

func newQueue() *queue {
	return &queue{reserved: make(map[int]struct{})}
}

func (q *queue) push(fileNum int) {
	q.mu.Lock()
	if fileNum > q.last {
		q.last = fileNum
	}
	q.files = append(q.files, fileNum)
	delete(q.reserved, fileNum)
	q.mu.Unlock()
}

func (q *queue) reserve() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.last++
	q.reserved[q.last] = struct{}{}
	return q.last
}

// merge appends the numbers in found that are neither queued, reserved nor
// reported by skip, keeping their order, and raises the high-water mark over
// all of them. It returns how many were appended.
func (q *queue) merge(found []int, skip func(fileNum int) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	present := make(map[int]struct{}, len(q.files))
	for _, n := range q.files {
		present[n] = struct{}{}
	}

	var added int
	for _, n := range found {
		if n > q.last {
			q.last = n
		}
		if _, ok := present[n]; ok {
			continue
		}
		if _, ok := q.reserved[n]; ok {
			continue
		}
		if skip != nil && skip(n) {
			continue
		}
		present[n] = struct{}{}
		q.files = append(q.files, n)
		added++
	}
	return added
}

// pop returns the head, removing it when remove is set. NoFile when empty.
func (q *queue) pop(remove bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.files) == 0 {
		return NoFile
	}
	fileNum := q.files[0]
	if remove {
		q.files[0] = NoFile
		q.files = q.files[1:]
	}
	return fileNum
}

// removeNth removes the n-th entry keeping the order of the others.
func (q *queue) removeNth(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n < 0 || n >= len(q.files) {
		return NoFile
	}
	fileNum := q.files[n]
	q.files = append(q.files[:n:n], q.files[n+1:]...)
	return fileNum
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.files)
}

func (q *queue) lastFileNum() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

func (q *queue) snapshot() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int(nil), q.files...)
}

// reset empties the queue and drops the high-water mark.
func (q *queue) reset() {
	q.mu.Lock()
	q.files = nil
	q.last = 0
	q.reserved = make(map[int]struct{})
	q.mu.Unlock()
}
