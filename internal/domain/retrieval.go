package domain

// RetrievalQuery is the ephemeral query built from detected part labels.
type RetrievalQuery struct {
	PartLabels  []string
	QueryText   string
	QueryVector []float32
}

// RetrievedContext is one manual page returned by nearest-neighbor search,
// ordered by ascending Distance from the query vector.
type RetrievedContext struct {
	PageNumber  int     `json:"page_number"`
	Description string  `json:"description"`
	ImageSource string  `json:"image_source"`
	Distance    float64 `json:"distance"`
}

// ImageSources returns the image source of each context item in order.
func ImageSources(items []RetrievedContext) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ImageSource)
	}
	return out
}
