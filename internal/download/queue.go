package download

// keyQueue is the FIFO dispatch queue of track keys. Retried tracks are
// pushed to the tail, so no track is attempted back-to-back while other
// pending work exists. Only the coordinator goroutine touches it.
type keyQueue struct {
	keys []string
	head int
}

func newKeyQueue(keys []string) *keyQueue {
	return &keyQueue{keys: append([]string(nil), keys...)}
}

func (q *keyQueue) push(key string) {
	q.keys = append(q.keys, key)
}

func (q *keyQueue) pop() (string, bool) {
	if q.head >= len(q.keys) {
		return "", false
	}
	k := q.keys[q.head]
	q.head++
	if q.head > len(q.keys)/2 {
		q.keys = append([]string(nil), q.keys[q.head:]...)
		q.head = 0
	}
	return k, true
}

func (q *keyQueue) len() int {
	return len(q.keys) - q.head
}
