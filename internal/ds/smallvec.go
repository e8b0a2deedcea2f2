package ds

const smallVecInlineCap = 8

// SmallVec is a growable sequence that keeps its first few elements in an
// inline array, so per-tick event lists and layer stacks stay allocation-free
// in the common case.
type SmallVec[T any] struct {
	inline [smallVecInlineCap]T
	spill  []T
	length int
}

func (v *SmallVec[T]) Len() int { return v.length }

func (v *SmallVec[T]) Push(item T) {
	if v.length < smallVecInlineCap {
		v.inline[v.length] = item
		v.length++
		return
	}
	v.spill = append(v.spill, item)
	v.length++
}

func (v *SmallVec[T]) At(i int) T {
	if i < smallVecInlineCap {
		return v.inline[i]
	}
	return v.spill[i-smallVecInlineCap]
}

func (v *SmallVec[T]) Set(i int, item T) {
	if i < smallVecInlineCap {
		v.inline[i] = item
		return
	}
	v.spill[i-smallVecInlineCap] = item
}

func (v *SmallVec[T]) Pop() (T, bool) {
	var zero T
	if v.length == 0 {
		return zero, false
	}
	v.length--
	if v.length >= smallVecInlineCap {
		item := v.spill[v.length-smallVecInlineCap]
		v.spill = v.spill[:v.length-smallVecInlineCap]
		return item, true
	}
	item := v.inline[v.length]
	v.inline[v.length] = zero
	return item, true
}

// Remove deletes the element at i, shifting everything after it down one.
func (v *SmallVec[T]) Remove(i int) {
	for j := i; j < v.length-1; j++ {
		v.Set(j, v.At(j+1))
	}
	var zero T
	v.Set(v.length-1, zero)
	v.length--
	if v.length < smallVecInlineCap && len(v.spill) > 0 {
		v.spill = v.spill[:0]
	} else if v.length >= smallVecInlineCap {
		v.spill = v.spill[:v.length-smallVecInlineCap]
	}
}

// Insert places item at index i, shifting the tail up one.
func (v *SmallVec[T]) Insert(i int, item T) {
	var zero T
	v.Push(zero)
	for j := v.length - 1; j > i; j-- {
		v.Set(j, v.At(j-1))
	}
	v.Set(i, item)
}

// Index returns the position of the first element for which eq reports true,
// or -1.
func (v *SmallVec[T]) Index(eq func(T) bool) int {
	for i := 0; i < v.length; i++ {
		if eq(v.At(i)) {
			return i
		}
	}
	return -1
}

func (v *SmallVec[T]) Clear() {
	var zero T
	for i := 0; i < v.length && i < smallVecInlineCap; i++ {
		v.inline[i] = zero
	}
	v.spill = v.spill[:0]
	v.length = 0
}
