package heuristics

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// Cycle Detector
//
// Strongly connected components of size >= 2 are closed loops of fund
// transfers. Each becomes a fraud ring and every member earns CyclePoints.
//
// Ring classification uses the mean in-degree of the members over the whole
// graph: above SmurfingInDegree the ring is fed from many directions and is
// labelled smurfing, otherwise circular_wash (exactly 2 is circular_wash).
//
// Tarjan's algorithm runs with an explicit frame stack so ledgers with very
// long transfer chains cannot exhaust the goroutine stack.

const (
	CyclePoints      = 50.0
	SmurfingInDegree = 2.0
	ringIDPrefix     = "RING-"
)

// RawRing is a detected ring before its risk score is known.
type RawRing struct {
	RingID      string
	Members     []int    // node indices, ordered by account id
	MemberIDs   []string // ascending
	PatternType models.RingType
}

// RingIDFunc generates ring identifiers.
type RingIDFunc func() string

// NewRingID returns "RING-" followed by six upper-case hex characters.
func NewRingID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return ringIDPrefix + strings.ToUpper(hex[:6])
}

// DetectCycles returns one RawRing per SCC with at least two members, in the
// order Tarjan's algorithm completes them. Ring ids are unique within the call.
func DetectCycles(g *Graph, newRingID RingIDFunc) []RawRing {
	if newRingID == nil {
		newRingID = NewRingID
	}

	used := make(map[string]bool)
	var rings []RawRing
	for _, comp := range StronglyConnectedComponents(g) {
		if len(comp) < 2 {
			continue
		}

		sort.Slice(comp, func(a, b int) bool {
			return g.NodeID(comp[a]) < g.NodeID(comp[b])
		})
		ids := make([]string, len(comp))
		inSum := 0
		for k, n := range comp {
			ids[k] = g.NodeID(n)
			inSum += g.InDegree(n)
		}

		pattern := models.RingCircularWash
		if float64(inSum)/float64(len(comp)) > SmurfingInDegree {
			pattern = models.RingSmurfing
		}

		id := newRingID()
		for used[id] {
			id = newRingID()
		}
		used[id] = true

		rings = append(rings, RawRing{
			RingID:      id,
			Members:     comp,
			MemberIDs:   ids,
			PatternType: pattern,
		})
	}
	return rings
}

// StronglyConnectedComponents partitions the nodes of g. Components are
// emitted in Tarjan completion order; members within a component are in
// stack-pop order.
func StronglyConnectedComponents(g *Graph) [][]int {
	n := g.NodeCount()
	const unvisited = -1

	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	type frame struct {
		node int
		next int // position in OutEdges(node)
	}

	var (
		counter    int
		stack      []int
		components [][]int
	)

	for root := 0; root < n; root++ {
		if index[root] != unvisited {
			continue
		}

		index[root], lowlink[root] = counter, counter
		counter++
		stack = append(stack, root)
		onStack[root] = true
		calls := []frame{{node: root}}

		for len(calls) > 0 {
			top := &calls[len(calls)-1]
			v := top.node
			outs := g.OutEdges(v)

			if top.next < len(outs) {
				w := g.Edge(outs[top.next]).To
				top.next++
				if index[w] == unvisited {
					index[w], lowlink[w] = counter, counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					calls = append(calls, frame{node: w})
				} else if onStack[w] && index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
				continue
			}

			// v is finished
			if lowlink[v] == index[v] {
				var comp []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				components = append(components, comp)
			}

			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].node
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}
		}
	}
	return components
}
