package cache

// lruNode is one key in a recency list.
type lruNode[K comparable] struct {
	key        K
	prev, next *lruNode[K]
}

// lruList orders keys from most recently used (front) to least recently
// used (back). It is not safe for concurrent use.
type lruList[K comparable] struct {
	front, back *lruNode[K]
	n           int
}

func newLRUList[K comparable]() *lruList[K] {
	return &lruList[K]{}
}

func (l *lruList[K]) Len() int { return l.n }

// PushFront inserts key as the most recently used entry.
func (l *lruList[K]) PushFront(key K) *lruNode[K] {
	node := &lruNode[K]{key: key}
	l.linkFront(node)
	return node
}

// MoveToFront marks node as the most recently used entry.
func (l *lruList[K]) MoveToFront(node *lruNode[K]) {
	if node == nil || node == l.front {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove drops node from the list. A nil node is ignored.
func (l *lruList[K]) Remove(node *lruNode[K]) {
	if node != nil {
		l.unlink(node)
	}
}

// RemoveOldest drops the least recently used entry and returns its key.
func (l *lruList[K]) RemoveOldest() (K, bool) {
	node := l.back
	if node == nil {
		var zero K
		return zero, false
	}
	l.unlink(node)
	return node.key, true
}

// Oldest returns the least recently used key without removing it.
func (l *lruList[K]) Oldest() (K, bool) {
	if l.back == nil {
		var zero K
		return zero, false
	}
	return l.back.key, true
}

func (l *lruList[K]) Clear() {
	l.front, l.back, l.n = nil, nil, 0
}

func (l *lruList[K]) linkFront(node *lruNode[K]) {
	node.prev = nil
	node.next = l.front
	if l.front != nil {
		l.front.prev = node
	} else {
		l.back = node
	}
	l.front = node
	l.n++
}

func (l *lruList[K]) unlink(node *lruNode[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.front = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.back = node.prev
	}
	node.prev, node.next = nil, nil
	l.n--
}
