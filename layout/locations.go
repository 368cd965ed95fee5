package layout

import (
	"unicode/utf8"

	"rishi/content"
	"rishi/epub"
)

// DefaultCharsPerLocation is the checkpoint spacing used when the host
// does not configure one.
const DefaultCharsPerLocation = 1200

// LocationPoint is one evenly spaced progress checkpoint. Locations are
// a stable progress scale, not an addressing mechanism; CFIs address.
type LocationPoint struct {
	SpineIndex      int
	CharOffset      int
	ProgressInSpine float64
}

// Locations summarizes the checkpoints of one publication.
type Locations struct {
	Total   int
	BySpine []int
	Points  []LocationPoint
}

// ComputeLocations emits floor(len/charsPerLocation) checkpoints per
// HTML spine item at multiples of charsPerLocation.
func ComputeLocations(doc *epub.Document, charsPerLocation int) *Locations {
	if charsPerLocation <= 0 {
		charsPerLocation = DefaultCharsPerLocation
	}

	out := &Locations{BySpine: make([]int, 0, len(doc.Spine))}
	for i := range doc.Spine {
		html, mime, err := doc.SpineContent(i)
		if err != nil || !content.IsHTML(mime) {
			out.BySpine = append(out.BySpine, 0)
			continue
		}
		text := content.StripTags(html)
		n := utf8.RuneCountInString(text)
		if n == 0 {
			out.BySpine = append(out.BySpine, 0)
			continue
		}
		count := 0
		for off := charsPerLocation; off <= n; off += charsPerLocation {
			out.Points = append(out.Points, LocationPoint{
				SpineIndex:      i,
				CharOffset:      off,
				ProgressInSpine: float64(off) / float64(n),
			})
			count++
		}
		out.BySpine = append(out.BySpine, count)
		out.Total += count
	}
	return out
}
