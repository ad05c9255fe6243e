package codec

import "math/bits"

// Edge is an undirected edge with the smaller vertex first.
type Edge [2]int

// Graph is a decoded graph.
type Graph struct {
	Order int    `json:"order"`
	Edges []Edge `json:"edges"`
}

// DecodeSparse6 decodes a sparse6 string such as ":Fa@x^". It returns
// false when the leading ':' is missing or a character lies outside the
// printable range '?'..'~'.
func DecodeSparse6(s string) (Graph, bool) {
	if len(s) == 0 || s[0] != ':' {
		return Graph{}, false
	}

	groups := make([]byte, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		p := int(s[i]) - 63
		if p < 0 || p > 63 {
			return Graph{}, false
		}
		groups = append(groups, byte(p))
	}
	r := &sextetReader{groups: groups}

	var n int
	switch first := r.read(6); {
	case first < 63:
		n = int(first)
	default:
		second := r.read(6)
		if second < 63 {
			n = int(second<<12 | r.read(12))
		} else {
			n = int(r.read(36))
		}
	}

	g := Graph{Order: n, Edges: []Edge{}}
	if n <= 1 {
		return g, true
	}

	k := bits.Len(uint(n - 1))
	cur := 0
	for r.remaining() > k {
		if r.read(1) == 1 {
			cur++
		}
		x := int(r.read(k))
		if x > n-1 || cur > n-1 {
			break
		}
		if x > cur {
			cur = x
		} else {
			g.Edges = append(g.Edges, Edge{x, cur})
		}
	}
	return g, true
}
