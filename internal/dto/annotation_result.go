package dto

import "objectvision/internal/vision"

// DetectionResult is one drawn or blended object in an API response.
type DetectionResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
	W     int     `json:"w"`
	H     int     `json:"h"`
}

// AnnotationResult describes a finished upload. Original and Processed are media
// file names relative to the media directory.
type AnnotationResult struct {
	Pipeline   string            `json:"pipeline"`
	Original   string            `json:"original"`
	Processed  string            `json:"processed"`
	Detections []DetectionResult `json:"detections"`
}

// NewDetectionResults converts pipeline detections for JSON output.
func NewDetectionResults(detections []vision.Detection) []DetectionResult {
	results := make([]DetectionResult, 0, len(detections))
	for _, d := range detections {
		results = append(results, DetectionResult{
			Label: d.Label,
			Score: d.Score,
			X:     d.Box.Min.X,
			Y:     d.Box.Min.Y,
			W:     d.Box.Dx(),
			H:     d.Box.Dy(),
		})
	}
	return results
}

