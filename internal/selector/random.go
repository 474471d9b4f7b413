package selector

import (
	"math/rand"

	"github.com/yunabot/dispatch-gateway/internal/registry"
)

type randomPicker struct{}

func (r *randomPicker) Pick(endpoints []*registry.Endpoint) *registry.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}

	index := rand.Intn(len(endpoints))
	return endpoints[index]
}

// NewRandomPicker picks uniformly at random among live endpoints, which
// spreads load evenly over time without herding traffic onto one backend.
func NewRandomPicker() Picker {
	return &randomPicker{}
}
