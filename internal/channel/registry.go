package channel

import "fmt"

// Registry maps channels to their connectors. Dispatch resolves the
// connector here exactly once per send instead of branching on channel
// names at every call site.
type Registry struct {
	connectors map[Channel]Connector
}

func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: make(map[Channel]Connector)}
	for _, c := range connectors {
		r.connectors[c.Channel()] = c
	}
	return r
}

func (r *Registry) Get(ch Channel) (Connector, error) {
	c, ok := r.connectors[ch]
	if !ok {
		return nil, fmt.Errorf("%w: no connector registered for %q", ErrUnknownChannel, ch)
	}
	return c, nil
}

func (r *Registry) Channels() []Channel {
	out := make([]Channel, 0, len(r.connectors))
	for ch := range r.connectors {
		out = append(out, ch)
	}
	return out
}
