package adapter

import (
	"fmt"

	"github.com/mksenin/notifyhub/internal/model"
)

// Registry resolves a channel to the Adapter that serves it.
type Registry map[model.Channel]Adapter

// Get returns the adapter for ch, or an error if no adapter is registered.
func (r Registry) Get(ch model.Channel) (Adapter, error) {
	a, ok := r[ch]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for channel %q", ch)
	}
	return a, nil
}
