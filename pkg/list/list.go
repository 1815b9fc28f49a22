// Package list implements a generic doubly linked list.
//
// Unlike container/list it is type safe and keeps element allocation
// visible to the caller, which matters for the cache hot paths built
// on top of it.
package list

type Elem[V any] struct {
	Value V

	prev, next *Elem[V]
	list       *List[V]
}

// Next returns the next element or nil.
func (e *Elem[V]) Next() *Elem[V] {
	return e.next
}

// Prev returns the previous element or nil.
func (e *Elem[V]) Prev() *Elem[V] {
	return e.prev
}

type List[V any] struct {
	front, back *Elem[V]
	length      int
}

func New[V any]() *List[V] {
	return &List[V]{}
}

// Front returns the first element or nil if the list is empty.
func (l *List[V]) Front() *Elem[V] {
	return l.front
}

// Back returns the last element or nil if the list is empty.
func (l *List[V]) Back() *Elem[V] {
	return l.back
}

func (l *List[V]) Len() int {
	return l.length
}

// PushBack appends v and returns its element.
func (l *List[V]) PushBack(v V) *Elem[V] {
	e := &Elem[V]{Value: v, list: l}
	l.length++

	if l.back == nil {
		l.front = e
		l.back = e
		return e
	}

	e.prev = l.back
	l.back.next = e
	l.back = e
	return e
}

// MoveToBack moves an existing element to the back in O(1).
func (l *List[V]) MoveToBack(e *Elem[V]) {
	if e.list != l {
		panic("list: elem does not belong to this list")
	}
	if l.back == e {
		return
	}

	l.unlink(e)

	e.prev = l.back
	e.next = nil
	l.back.next = e
	l.back = e
}

// Remove detaches e from the list and returns its value.
func (l *List[V]) Remove(e *Elem[V]) V {
	if e.list != l {
		panic("list: elem does not belong to this list")
	}

	l.unlink(e)
	l.length--

	e.prev = nil
	e.next = nil
	e.list = nil
	return e.Value
}

func (l *List[V]) unlink(e *Elem[V]) {
	p, n := e.prev, e.next

	if p != nil {
		p.next = n
	} else {
		l.front = n
	}
	if n != nil {
		n.prev = p
	} else {
		l.back = p
	}
}
