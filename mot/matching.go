package mot

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// MatchingAlgorithm is for algorithm type for matching spots to track heads
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy uses a greedy algorithm for faster but potentially suboptimal assignment
	MatchingAlgorithmGreedy
)

var algorithmNames = map[MatchingAlgorithm]string{
	MatchingAlgorithmHungarian: "hungarian",
	MatchingAlgorithmGreedy:    "greedy",
}

func (a MatchingAlgorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("MatchingAlgorithm(%d)", a)
}

// MarshalText implements encoding.TextMarshaler.
func (a MatchingAlgorithm) MarshalText() ([]byte, error) {
	if _, ok := algorithmNames[a]; !ok {
		return nil, fmt.Errorf("unknown matching algorithm %d", a)
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *MatchingAlgorithm) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range algorithmNames {
		if v == name {
			*a = k
			return nil
		}
	}
	return fmt.Errorf("unknown matching algorithm %q", string(text))
}

// feasible reports whether a cost may be matched under maxCost.
func feasible(cost, maxCost float64) bool {
	return !math.IsNaN(cost) && !math.IsInf(cost, 1) && cost <= maxCost
}

// performMatching is helper function to perform matching using Hungarian or Greedy algorithm.
// costs: rows are track heads, columns are spots of the current frame.
// Returns: a slice of [2]int {row, column} sorted by row. Pairs costing more
// than maxCost are never returned.
func performMatching(costs [][]float64, maxCost float64, algorithm MatchingAlgorithm) [][2]int {
	var matches [][2]int
	switch algorithm {
	case MatchingAlgorithmHungarian:
		matches = performHungarianMatching(costs, maxCost)
	case MatchingAlgorithmGreedy:
		matches = performGreedyMatching(costs, maxCost)
	default:
		matches = performGreedyMatching(costs, maxCost)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i][0] < matches[j][0]
	})
	return matches
}

// performHungarianMatching maximizes the number of links first and then
// minimizes their total cost. Costs are divided by the largest feasible cost
// c_max, so a feasible pair costs cost/c_max - (k+1), k = min(rows, cols),
// and every other cell costs zero: each link is worth at least k, more than
// any saving of at most k on the others. Nothing depends on the magnitude
// of maxCost.
func performHungarianMatching(costs [][]float64, maxCost float64) [][2]int {
	numRows := len(costs)
	if numRows == 0 || len(costs[0]) == 0 {
		return [][2]int{}
	}
	numCols := len(costs[0])

	scale := 0.0
	anyFeasible := false
	for i := range costs {
		for _, c := range costs[i] {
			if feasible(c, maxCost) {
				scale = math.Max(scale, c)
				anyFeasible = true
			}
		}
	}
	if !anyFeasible {
		return [][2]int{}
	}
	if !(scale > 0) {
		scale = 1
	}
	offset := float64(minInt(numRows, numCols) + 1)

	// Pad to make it square
	paddedSize := maxInt(numRows, numCols)
	paddedMatrix := make([][]float64, paddedSize)
	for i := 0; i < paddedSize; i++ {
		paddedMatrix[i] = make([]float64, paddedSize)
		if i >= numRows {
			continue
		}
		for j := 0; j < numCols; j++ {
			if feasible(costs[i][j], maxCost) {
				paddedMatrix[i][j] = costs[i][j]/scale - offset
			}
		}
	}
	assignment := solveAssignment(paddedMatrix)
	matches := make([][2]int, 0, minInt(numRows, numCols))
	for row, col := range assignment {
		// Dummy rows and columns, and pairs beyond maxCost, are not links
		if row < numRows && col < numCols && feasible(costs[row][col], maxCost) {
			matches = append(matches, [2]int{row, col})
		}
	}
	return matches
}

// performGreedyMatching repeatedly takes the cheapest pair whose row and
// column are both free.
func performGreedyMatching(costs [][]float64, maxCost float64) [][2]int {
	matches := make([][2]int, 0)
	h := make(candidateHeap, 0)
	for i := range costs {
		for j := range costs[i] {
			if feasible(costs[i][j], maxCost) {
				h.Push(&candidate{row: i, col: j, cost: costs[i][j]})
			}
		}
	}
	matchedRows := make(map[int]struct{})
	matchedCols := make(map[int]struct{})
	for h.Len() > 0 {
		c := h.Pop()
		if _, found := matchedRows[c.row]; found {
			continue
		}
		if _, found := matchedCols[c.col]; found {
			continue
		}
		matchedRows[c.row] = struct{}{}
		matchedCols[c.col] = struct{}{}
		matches = append(matches, [2]int{c.row, c.col})
	}
	return matches
}

func maxInt(x, y int) int {
	if x > y {
		return x
	}
	return y
}

func minInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}
