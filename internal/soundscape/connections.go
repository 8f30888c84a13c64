package soundscape

// Connection names two scenes that should be joined by a line segment.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ConnectionPolicy decides which scenes are connected, given the scene IDs in order.
type ConnectionPolicy interface {
	Connections(ids []string) []Connection
}

// ConsecutivePairs connects scenes pairwise by position: 0-1, 2-3, and so on.
// A trailing unpaired scene is left unconnected.
type ConsecutivePairs struct{}

// Connections implements ConnectionPolicy.
func (ConsecutivePairs) Connections(ids []string) []Connection {
	out := make([]Connection, 0, len(ids)/2)
	for i := 0; i+1 < len(ids); i += 2 {
		out = append(out, Connection{From: ids[i], To: ids[i+1]})
	}
	return out
}

// NamedPairs is an explicit, caller-supplied list of connections.
type NamedPairs []Connection

// Connections implements ConnectionPolicy. The scene order is ignored.
func (n NamedPairs) Connections([]string) []Connection {
	out := make([]Connection, len(n))
	copy(out, n)
	return out
}

// PolicyFor returns NamedPairs for a non-empty list and ConsecutivePairs otherwise.
func PolicyFor(pairs []Connection) ConnectionPolicy {
	if len(pairs) == 0 {
		return ConsecutivePairs{}
	}
	return NamedPairs(pairs)
}

// Segment is a resolved connection between two normalized coordinates.
type Segment struct {
	FromID string     `json:"from_id"`
	ToID   string     `json:"to_id"`
	Start  Coordinate `json:"start"`
	End    Coordinate `json:"end"`
}

// Segments resolves the policy's connections against points. Connections
// whose endpoints are not both present are skipped. A nil policy means
// ConsecutivePairs.
func Segments(points []ScenePoint, policy ConnectionPolicy) []Segment {
	if policy == nil {
		policy = ConsecutivePairs{}
	}
	ids := make([]string, len(points))
	byID := make(map[string]Coordinate, len(points))
	for i, p := range points {
		ids[i] = p.SceneID
		byID[p.SceneID] = p.Normalized
	}

	var out []Segment
	for _, c := range policy.Connections(ids) {
		start, ok := byID[c.From]
		if !ok {
			continue
		}
		end, ok := byID[c.To]
		if !ok {
			continue
		}
		out = append(out, Segment{FromID: c.From, ToID: c.To, Start: start, End: end})
	}
	return out
}
