package list

import "testing"

func collect(l *List[int]) []int {
	var out []int
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	return out
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func Test_list(t *testing.T) {
	l := New[int]()
	e1 := l.PushBack(1)
	e2 := l.PushBack(2)
	l.PushBack(3)

	if !equal(collect(l), []int{1, 2, 3}) {
		t.Fatal("push order mismatched")
	}

	l.MoveToBack(e1)
	if !equal(collect(l), []int{2, 3, 1}) {
		t.Fatal("move to back mismatched")
	}

	if v := l.Remove(e2); v != 2 {
		t.Fatalf("remove returned %d, want 2", v)
	}
	if !equal(collect(l), []int{3, 1}) || l.Len() != 2 {
		t.Fatal("remove mismatched")
	}

	if l.Front().Value != 3 || l.Back().Value != 1 {
		t.Fatal("front/back mismatched")
	}
}

func Test_list_single(t *testing.T) {
	l := New[int]()
	e := l.PushBack(1)
	l.MoveToBack(e)
	l.Remove(e)
	if l.Len() != 0 || l.Front() != nil || l.Back() != nil {
		t.Fatal("list not empty after removing only elem")
	}
}
