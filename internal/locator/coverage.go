package locator

import (
	"github.com/RoaringBitmap/roaring"
)

// Coverage returns the index of every root that can back name with one of
// the candidates. Which bit wins depends on the resolution order, so callers
// pass the winning root to Shadowed.
func Coverage(name string, roots Roots, candidates ...Candidate) *roaring.Bitmap {
	bm := roaring.New()
	for i, r := range roots {
		for _, c := range candidates {
			if _, ok, err := probe(i, r, c, name); err == nil && ok {
				bm.Add(uint32(i))
				break
			}
		}
	}
	return bm
}

// Shadowed lists the namespaces of every root in bm except winner, the root
// that actually backs the name.
func Shadowed(bm *roaring.Bitmap, roots Roots, winner int) []string {
	if bm == nil {
		return nil
	}
	var out []string
	it := bm.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		if id == winner || id >= len(roots) {
			continue
		}
		out = append(out, roots[id].Namespace)
	}
	return out
}
