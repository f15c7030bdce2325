package trainer

import (
	"math/rand"
	"sort"
)

// oversample balances the classes by synthesizing minority rows on the line
// segments to their k nearest minority neighbours (SMOTE).
func oversample(x [][]float64, y []float64, k int, rng *rand.Rand) ([][]float64, []float64) {
	var pos, neg []int
	for i, v := range y {
		if v == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	minority, label := pos, 1.0
	if len(pos) > len(neg) {
		minority, label = neg, 0.0
	}
	need := len(y) - 2*len(minority)
	if need <= 0 || len(minority) == 0 {
		return x, y
	}

	neighbours := nearest(x, minority, k)
	outX := append([][]float64(nil), x...)
	outY := append([]float64(nil), y...)
	for s := 0; s < need; s++ {
		a := rng.Intn(len(minority))
		base := x[minority[a]]
		row := make([]float64, len(base))
		if len(neighbours[a]) == 0 {
			copy(row, base)
		} else {
			other := x[neighbours[a][rng.Intn(len(neighbours[a]))]]
			gap := rng.Float64()
			for j := range row {
				row[j] = base[j] + gap*(other[j]-base[j])
			}
		}
		outX = append(outX, row)
		outY = append(outY, label)
	}
	return outX, outY
}

// nearest returns, for each member of idx, the row indices of its k closest
// other members.
func nearest(x [][]float64, idx []int, k int) [][]int {
	out := make([][]int, len(idx))
	for a, i := range idx {
		type cand struct {
			row  int
			dist float64
		}
		cands := make([]cand, 0, len(idx)-1)
		for _, j := range idx {
			if j == i {
				continue
			}
			cands = append(cands, cand{j, sqDist(x[i], x[j])})
		}
		sort.SliceStable(cands, func(p, q int) bool { return cands[p].dist < cands[q].dist })
		if len(cands) > k {
			cands = cands[:k]
		}
		for _, c := range cands {
			out[a] = append(out[a], c.row)
		}
	}
	return out
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// stratifiedSplit holds out testFraction of each class. Every class with at
// least two rows contributes at least one test row.
func stratifiedSplit(y []float64, testFraction float64, rng *rand.Rand) (train, test []int) {
	byClass := map[float64][]int{}
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	for _, label := range []float64{0, 1} {
		rows := byClass[label]
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		nTest := int(float64(len(rows))*testFraction + 0.5)
		if nTest == 0 && len(rows) >= 2 {
			nTest = 1
		}
		if nTest >= len(rows) {
			nTest = len(rows) - 1
		}
		if nTest < 0 {
			nTest = 0
		}
		test = append(test, rows[:nTest]...)
		train = append(train, rows[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
