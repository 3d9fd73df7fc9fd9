package area

import "gridsim/internal/strategy"

// Classify buckets an area for reporting. A cell tower is a leaf running the
// dedicated load profile; a house is a non-leaf whose children are all
// leaves; everything else is unclassified.
func Classify(a *Area) string {
	if _, ok := a.Strategy.(*strategy.CellTowerLoad); ok {
		return "cell_tower"
	}
	if a.IsLeaf() {
		return "unknown"
	}
	for _, c := range a.Children {
		if !c.IsLeaf() {
			return "unknown"
		}
	}
	return "house"
}
