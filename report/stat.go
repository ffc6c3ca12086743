package report

// ImageStat describes one physical image as found in a document.
type ImageStat struct {
	Page    int // 1-based page of the first binding
	Name    string
	Key     string // resolution map key
	Width   int
	Height  int
	DPI     float64 // effective resolution; 0 if never painted
	Format  string
	Filters []string
	Length  int64 // encoded bytes
	// BitsPerPixel is the encoded size per pixel.
	BitsPerPixel float64

	// Outcome is what the run did with the image: "kept", "shrunk",
	// "imported", "failed" or "skipped".
	Outcome   string
	NewWidth  int
	NewHeight int
	NewLength int64
}

// Outcomes.
const (
	Kept     = "kept"
	Shrunk   = "shrunk"
	Imported = "imported"
	Failed   = "failed"
	Skipped  = "skipped"
)

// BitsPerPixel returns 8*length/(width*height), rounded down to two
// decimals, or 0 for an empty image.
func BitsPerPixel(length int64, width, height int) float64 {
	pixels := int64(width) * int64(height)
	if pixels <= 0 {
		return 0
	}
	return float64(800*length/pixels) / 100
}

// Totals sums the encoded sizes before and after a run.
func Totals(stats []ImageStat) (before, after int64) {
	for _, s := range stats {
		before += s.Length
		if s.NewLength > 0 {
			after += s.NewLength
		} else {
			after += s.Length
		}
	}
	return before, after
}
