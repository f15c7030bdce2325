package classifier

// Path-dependent TreeSHAP (Lundberg et al., 2018). Attributions are in
// log-odds space and sum, together with ExpectedMargin, to the margin.

type pathElem struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

// Shap returns one attribution per model column for the aligned row x.
func (m *Model) Shap(x []float64) []float64 {
	phi := make([]float64, len(m.FeatureNames))
	for i := range m.Trees {
		t := &m.Trees[i]
		t.shapRecurse(x, phi, 0, nil, 1, 1, -1)
	}
	return phi
}

func (t *Tree) shapRecurse(x, phi []float64, node int, parent []pathElem, zero, one float64, feature int) {
	path := make([]pathElem, len(parent), len(parent)+1)
	copy(path, parent)
	path = extendPath(path, zero, one, feature)

	n := &t.Nodes[node]
	if n.IsLeaf() {
		for i := 1; i < len(path); i++ {
			w := unwoundPathSum(path, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * n.Value
		}
		return
	}

	hot, cold := n.Left, n.Right
	if x[n.Feature] >= n.Threshold {
		hot, cold = cold, hot
	}
	hotZero, coldZero := 0.5, 0.5
	if n.Cover > 0 {
		hotZero = t.Nodes[hot].Cover / n.Cover
		coldZero = t.Nodes[cold].Cover / n.Cover
	}

	inZero, inOne := 1.0, 1.0
	for k := range path {
		if path[k].feature == n.Feature {
			inZero, inOne = path[k].zero, path[k].one
			path = unwindPath(path, k)
			break
		}
	}

	t.shapRecurse(x, phi, hot, path, hotZero*inZero, inOne, n.Feature)
	t.shapRecurse(x, phi, cold, path, coldZero*inZero, 0, n.Feature)
}

func extendPath(path []pathElem, zero, one float64, feature int) []pathElem {
	d := len(path)
	path = append(path, pathElem{feature: feature, zero: zero, one: one})
	if d == 0 {
		path[0].weight = 1
	}
	for i := d - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / float64(d+1)
		path[i].weight = zero * path[i].weight * float64(d-i) / float64(d+1)
	}
	return path
}

// unwindPath removes element k, undoing its extendPath.
func unwindPath(path []pathElem, k int) []pathElem {
	d := len(path) - 1
	one, zero := path[k].one, path[k].zero
	next := path[d].weight
	for i := d - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * float64(d+1) / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(d-i)/float64(d+1)
		} else {
			path[i].weight = path[i].weight * float64(d+1) / (zero * float64(d-i))
		}
	}
	for i := k; i < d; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
	return path[:d]
}

// unwoundPathSum is the total weight of the path with element k removed.
func unwoundPathSum(path []pathElem, k int) float64 {
	d := len(path) - 1
	one, zero := path[k].one, path[k].zero
	next := path[d].weight
	total := 0.0
	for i := d - 1; i >= 0; i-- {
		switch {
		case one != 0:
			tmp := next * float64(d+1) / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(d-i)/float64(d+1)
		case zero != 0:
			total += path[i].weight / zero / (float64(d-i) / float64(d+1))
		}
	}
	return total
}
