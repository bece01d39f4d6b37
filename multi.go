package sdbx

// Multi slices the packed value page returned by cursor GetMultiple and
// NextMultiple on DupFixed databases. All values share one fixed size,
// the stride.
type Multi struct {
	page   []byte
	stride int
}

// WrapMulti wraps a packed value page. The length of page must be a
// multiple of stride.
func WrapMulti(page []byte, stride int) *Multi {
	return &Multi{page: page, stride: stride}
}

// Len returns the number of values in the page.
func (m *Multi) Len() int {
	if m.stride == 0 {
		return 0
	}
	return len(m.page) / m.stride
}

// Val returns the value at index i, or nil when out of range.
func (m *Multi) Val(i int) []byte {
	if m.stride == 0 || i < 0 || (i+1)*m.stride > len(m.page) {
		return nil
	}
	return m.page[i*m.stride : (i+1)*m.stride]
}

// Vals returns all values as subslices of the page.
func (m *Multi) Vals() [][]byte {
	n := m.Len()
	if n == 0 {
		return nil
	}
	vals := make([][]byte, n)
	for i := 0; i < n; i++ {
		vals[i] = m.page[i*m.stride : (i+1)*m.stride]
	}
	return vals
}

// Stride returns the fixed value size.
func (m *Multi) Stride() int {
	return m.stride
}

// Page returns the raw packed page.
func (m *Multi) Page() []byte {
	return m.page
}
