package bptree

// lowerBound returns the first index i with cmp(keys[i], key) >= 0, or
// len(keys) when every key is smaller.
func lowerBound(keys [][]byte, key []byte, cmp func(a, b []byte) int) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(keys[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first index i with cmp(keys[i], key) > 0. Descent
// follows child[upperBound], which sends separator ties to the right child
// and keeps leaf key ranges half-open.
func upperBound(keys [][]byte, key []byte, cmp func(a, b []byte) int) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(keys[mid], key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
