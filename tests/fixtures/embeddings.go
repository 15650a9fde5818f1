package fixtures

import "math"

// VecAngle returns a two-dimensional unit vector at the given angle in
// degrees. Cosine similarity between VecAngle(a) and VecAngle(b) is
// cos(a-b), which lets tests dial in exact similarities:
//
//	VecAngle(0) vs VecAngle(0)  -> 1.00
//	VecAngle(0) vs VecAngle(25) -> ~0.91
//	VecAngle(0) vs VecAngle(60) -> 0.50
//	VecAngle(0) vs VecAngle(90) -> 0.00
func VecAngle(degrees float64) []float32 {
	rad := degrees * math.Pi / 180
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

// VecSimilarity returns a vector whose cosine similarity to VecAngle(0) is
// exactly the given value.
func VecSimilarity(sim float64) []float32 {
	return VecAngle(math.Acos(sim) * 180 / math.Pi)
}
