package embedding

import (
	"fmt"
	"math"
)

// Metric scores two vectors. Higher is always more similar.
type Metric string

const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
	Manhattan Metric = "manhattan"
)

// ParseMetric accepts "" as Cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", Cosine:
		return Cosine, nil
	case Euclidean, Manhattan:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Score applies the metric. Vectors of different length score 0.
func (m Metric) Score(a, b Vector) float64 {
	switch m {
	case Euclidean:
		if len(a) != len(b) {
			return 0
		}
		return 1 / (1 + EuclideanDistance(a, b))
	case Manhattan:
		if len(a) != len(b) {
			return 0
		}
		return 1 / (1 + ManhattanDistance(a, b))
	default:
		return CosineSimilarity(a, b)
	}
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	// sqrt(n*n) == n in IEEE arithmetic, so identical vectors score exactly 1.
	sim := dot / math.Sqrt(normA*normB)
	return math.Max(-1, math.Min(1, sim))
}

// EuclideanDistance assumes equal lengths.
func EuclideanDistance(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ManhattanDistance assumes equal lengths.
func ManhattanDistance(a, b Vector) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v Vector) Vector {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
