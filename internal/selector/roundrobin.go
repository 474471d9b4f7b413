package selector

import (
	"sync/atomic"

	"github.com/yunabot/dispatch-gateway/internal/registry"
)

type roundRobinPicker struct {
	current uint64
}

func (rb *roundRobinPicker) Pick(endpoints []*registry.Endpoint) *registry.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}

	n := atomic.AddUint64(&rb.current, 1)

	index := (n - 1) % uint64(len(endpoints))

	return endpoints[index]
}

// NewRoundRobinPicker cycles through live endpoints in order.
func NewRoundRobinPicker() Picker {
	return &roundRobinPicker{
		current: 0,
	}
}
