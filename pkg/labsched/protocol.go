package labsched

import "encoding/json"

// Protocol is an ordered worklist of Tasks and Transitions representing one
// sample's journey through the system.
type Protocol struct {
	Name     string
	ID       string
	Worklist []*Task
}

// NewProtocol constructs a Protocol directly from a worklist of TaskLike
// elements. System.GenerateProtocol is the usual way to build one (it also
// expands transitions and chains precedence); this constructor is for
// worklists the caller has already fully expanded.
func NewProtocol(name string, worklist []TaskLike) (*Protocol, error) {
	tasks := make([]*Task, len(worklist))
	for i, tl := range worklist {
		if tl == nil {
			return nil, newValidationError("Protocol", "worklist element %d is nil", i)
		}
		tasks[i] = tl.task()
	}
	return &Protocol{
		Name:     name,
		ID:       generateID(name),
		Worklist: tasks,
	}, nil
}

// Equal compares protocols worklist-wise by task id. Two protocols built
// from the same template worklist are unequal, since GenerateProtocol
// clones each task to a fresh id.
func (p *Protocol) Equal(other *Protocol) bool {
	if p == nil || other == nil {
		return p == other
	}
	if len(p.Worklist) != len(other.Worklist) {
		return false
	}
	for i := range p.Worklist {
		if !p.Worklist[i].Equal(other.Worklist[i]) {
			return false
		}
	}
	return true
}

func (p *Protocol) String() string {
	out := "<Protocol> " + p.Name + "\nWorklist:\n"
	for _, t := range p.Worklist {
		out += "\t" + t.String() + "\n"
	}
	return out
}

type protocolDict struct {
	Name     string           `json:"name"`
	ID       string           `json:"id"`
	Worklist []map[string]any `json:"worklist"`
}

// ToDict renders the protocol in the external serialization shape
// documented in spec.md §6.
func (p *Protocol) ToDict() map[string]any {
	worklist := make([]map[string]any, len(p.Worklist))
	for i, t := range p.Worklist {
		worklist[i] = t.ToDict()
	}
	return map[string]any{
		"name":     p.Name,
		"id":       p.ID,
		"worklist": worklist,
	}
}

// ToJSON marshals ToDict's shape.
func (p *Protocol) ToJSON() ([]byte, error) {
	worklist := make([]map[string]any, len(p.Worklist))
	for i, t := range p.Worklist {
		worklist[i] = t.ToDict()
	}
	return json.Marshal(protocolDict{Name: p.Name, ID: p.ID, Worklist: worklist})
}
