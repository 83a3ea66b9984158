package artifact

import (
	"errors"
	"fmt"
	"math"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// KindRandomForest tags a serialized tree ensemble.
const KindRandomForest = "random_forest"

// leafFeature marks a leaf node.
const leafFeature = -1

// Node is one entry of a tree's flat node table. Internal nodes route to
// Left when x[Feature] <= Threshold; leaves carry per-class counts in Value.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// RandomForest averages the normalized leaf distributions of its trees and
// returns the class with the highest mean probability.
type RandomForest struct {
	Kind      string `json:"kind"`
	Classes   []int  `json:"classes"`
	NFeatures int    `json:"n_features"`
	Trees     []Tree `json:"trees"`
}

var errEmptyForest = errors.New("forest: no trees")

func (f *RandomForest) validate() error {
	if f.Kind != KindRandomForest {
		return fmt.Errorf("forest: unexpected kind %q", f.Kind)
	}
	if f.NFeatures != len(model.FeatureNames) {
		return fmt.Errorf("forest: fitted on %d features, want %d", f.NFeatures, len(model.FeatureNames))
	}
	if len(f.Classes) < 2 {
		return fmt.Errorf("forest: need at least 2 classes, got %d", len(f.Classes))
	}
	if len(f.Trees) == 0 {
		return errEmptyForest
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("forest: tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature == leafFeature {
				if len(n.Value) != len(f.Classes) {
					return fmt.Errorf("forest: tree %d leaf %d has %d values, want %d", ti, ni, len(n.Value), len(f.Classes))
				}
				var sum float64
				for _, v := range n.Value {
					if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
						return fmt.Errorf("forest: tree %d leaf %d has invalid value %v", ti, ni, v)
					}
					sum += v
				}
				if sum == 0 {
					return fmt.Errorf("forest: tree %d leaf %d is empty", ti, ni)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NFeatures {
				return fmt.Errorf("forest: tree %d node %d splits on feature %d", ti, ni, n.Feature)
			}
			if math.IsNaN(n.Threshold) || math.IsInf(n.Threshold, 0) {
				return fmt.Errorf("forest: tree %d node %d has invalid threshold %v", ti, ni, n.Threshold)
			}
			// children always follow their parent, so traversal terminates
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("forest: tree %d node %d has children out of range", ti, ni)
			}
		}
	}
	return nil
}

// Proba returns the averaged class probabilities, ordered like Classes.
func (f *RandomForest) Proba(x model.ScaledFeatureVector) ([]float64, error) {
	if len(x) != f.NFeatures {
		return nil, fmt.Errorf("forest: got %d features, fitted on %d", len(x), f.NFeatures)
	}
	if len(f.Trees) == 0 {
		return nil, errEmptyForest
	}
	proba := make([]float64, len(f.Classes))
	for _, t := range f.Trees {
		leaf := t.leaf(x)
		var sum float64
		for _, v := range leaf.Value {
			sum += v
		}
		for i, v := range leaf.Value {
			proba[i] += v / sum
		}
	}
	for i := range proba {
		proba[i] /= float64(len(f.Trees))
	}
	return proba, nil
}

// Predict returns the most probable class; ties go to the earliest class.
func (f *RandomForest) Predict(x model.ScaledFeatureVector) (int, error) {
	proba, err := f.Proba(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return f.Classes[best], nil
}

func (t Tree) leaf(x model.ScaledFeatureVector) Node {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leafFeature {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
