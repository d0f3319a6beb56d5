package audio

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is a transient reference a presenter uses to play an artifact back.
// A handle is only valid until it is released.
type Handle string

const handlePrefix = "blob:"

// ID returns the handle without its scheme, suitable for use in a URL path.
func (h Handle) ID() string {
	if len(h) <= len(handlePrefix) {
		return ""
	}
	return string(h[len(handlePrefix):])
}

// ParseHandle rebuilds a handle from the ID returned by Handle.ID.
func ParseHandle(id string) Handle {
	return Handle(handlePrefix + id)
}

type playable struct {
	data     []byte
	mimeType string
}

// Handles is the registry of live playable handles.
type Handles struct {
	items map[Handle]playable
	sync.RWMutex

	// OnChange, when set, is called with the number of live handles after
	// every allocation or release.
	OnChange func(live int)
}

func NewHandles() *Handles {
	return &Handles{
		items: make(map[Handle]playable),
	}
}

// Allocate binds a new handle to data.
func (h *Handles) Allocate(data []byte, mimeType string) Handle {
	handle := Handle(handlePrefix + uuid.New().String())

	h.Lock()
	h.items[handle] = playable{data: data, mimeType: mimeType}
	live := len(h.items)
	h.Unlock()

	h.notify(live)
	return handle
}

// Release revokes a handle. It reports whether the handle was live.
func (h *Handles) Release(handle Handle) bool {
	h.Lock()
	_, exists := h.items[handle]
	delete(h.items, handle)
	live := len(h.items)
	h.Unlock()

	if exists {
		h.notify(live)
	}
	return exists
}

// Lookup returns the bytes and mime type bound to a live handle.
func (h *Handles) Lookup(handle Handle) ([]byte, string, bool) {
	h.RLock()
	defer h.RUnlock()
	{
		p, exists := h.items[handle]
		if !exists {
			return nil, "", false
		}
		return p.data, p.mimeType, true
	}
}

// Len returns the number of live handles.
func (h *Handles) Len() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.items)
}

func (h *Handles) notify(live int) {
	if h.OnChange != nil {
		h.OnChange(live)
	}
}
