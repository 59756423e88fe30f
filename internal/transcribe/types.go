package transcribe

// Segment is a timestamped span of transcript text. Index is assigned
// 0..N-1 in chronological order by the client, independent of any id the
// engine reports.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the normalized engine output.
type Result struct {
	Segments []Segment
	FullText string

	// DetectedDuration is the end time of the last segment, nil when the
	// engine produced no segments. Independent of the probed container
	// duration.
	DetectedDuration *float64
}
