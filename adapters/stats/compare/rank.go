package compare

import "sort"

// averageRanks assigns 1-based ranks to values, giving tied values the mean of
// the ranks they span. It also returns the size of every tie group larger than one.
func averageRanks(values []float64) (ranks []float64, ties []int) {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] < values[order[j]]
	})

	ranks = make([]float64, n)
	for start := 0; start < n; {
		end := start + 1
		for end < n && values[order[end]] == values[order[start]] {
			end++
		}
		// positions start..end-1 hold ranks start+1..end
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			ranks[order[k]] = avg
		}
		if size := end - start; size > 1 {
			ties = append(ties, size)
		}
		start = end
	}
	return ranks, ties
}
