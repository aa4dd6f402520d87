// Package face handles biometric templates: serialized embedding vectors
// produced by an external extractor service and compared by Euclidean
// distance. The service never stores images, only the derived vectors.
package face

import (
	"encoding/json"
	"errors"
	"math"
)

var (
	// ErrNoFaceDetected means the extractor found no usable face in the image.
	ErrNoFaceDetected = errors.New("face: no face detected")

	// ErrFaceMismatch means the presented face does not match the enrolled template.
	ErrFaceMismatch = errors.New("face: does not match enrolled template")

	errDimensionMismatch = errors.New("face: template dimensions differ")
)

// MatchThreshold is the maximum Euclidean distance between two embeddings
// still considered the same person. 0.6 is the conventional operating point
// for 128-dimension dlib-style embeddings.
const MatchThreshold = 0.6

// Template is an embedding vector.
type Template []float64

// Encode serializes the template for storage.
func (t Template) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeTemplate parses a stored template.
func DecodeTemplate(s string) (Template, error) {
	var t Template
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, err
	}
	return t, nil
}

// Distance returns the Euclidean distance between two templates.
func Distance(a, b Template) (float64, error) {
	if len(a) != len(b) {
		return 0, errDimensionMismatch
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Match reports whether the candidate embedding belongs to the same person
// as the enrolled template. Dimension mismatches count as a mismatch rather
// than an internal error: a re-enrolled template with a different extractor
// model must not lock the account into errors.
func Match(enrolled, candidate Template) error {
	dist, err := Distance(enrolled, candidate)
	if err != nil {
		return ErrFaceMismatch
	}
	if dist > MatchThreshold {
		return ErrFaceMismatch
	}
	return nil
}
