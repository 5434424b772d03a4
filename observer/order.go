package observer

import (
	"sort"

	"github.com/anyproto/any-mirror/document"
)

// movedIds returns the documents present in both orders that have to be moved
// to turn oldOrder into newOrder. Documents on the longest increasing
// subsequence of old positions keep their place, everything else moves.
func movedIds(oldOrder, newOrder []document.Id, added map[document.Id]bool) map[document.Id]bool {
	oldPos := make(map[document.Id]int, len(oldOrder))
	for i, id := range oldOrder {
		oldPos[id] = i
	}
	var (
		survivors []document.Id
		positions []int
	)
	for _, id := range newOrder {
		if added[id] {
			continue
		}
		if pos, ok := oldPos[id]; ok {
			survivors = append(survivors, id)
			positions = append(positions, pos)
		}
	}
	keep := longestIncreasing(positions)
	moved := make(map[document.Id]bool)
	for i, id := range survivors {
		if !keep[i] {
			moved[id] = true
		}
	}
	return moved
}

// longestIncreasing marks the indexes of one longest strictly increasing subsequence
func longestIncreasing(seq []int) []bool {
	keep := make([]bool, len(seq))
	if len(seq) == 0 {
		return keep
	}
	var (
		// tails[k] is the index in seq of the smallest tail of an increasing run of length k+1
		tails = make([]int, 0, len(seq))
		prev  = make([]int, len(seq))
	)
	for i, v := range seq {
		k := sort.Search(len(tails), func(j int) bool {
			return seq[tails[j]] >= v
		})
		if k > 0 {
			prev[i] = tails[k-1]
		} else {
			prev[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		keep[i] = true
	}
	return keep
}
