package fill

import "image"

// queue is a growable ring buffer of points used as the BFS frontier.
type queue struct {
	buf  []image.Point
	head int
	n    int
}

func newQueue(capacity int) *queue {
	if capacity < 1 {
		capacity = 1
	}
	return &queue{buf: make([]image.Point, capacity)}
}

func (q *queue) size() int { return q.n }

func (q *queue) push(p image.Point) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = p
	q.n++
}

func (q *queue) pop() image.Point {
	p := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return p
}

// grow doubles the buffer, unwrapping the live segment to the front.
func (q *queue) grow() {
	next := make([]image.Point, len(q.buf)*2)
	k := copy(next, q.buf[q.head:])
	copy(next[k:], q.buf[:q.head])
	q.buf = next
	q.head = 0
}
