package widget

// Ref is the slice of widget configuration this engine needs: the internal
// id guests are scoped to, the public id embedded in the page, and the
// owning user whose business answers the chat. Appearance and the rest of
// the settings record live outside this core.
type Ref struct {
	ID          string `json:"id"`
	PublicID    string `json:"publicId"`
	OwnerUserID string `json:"ownerUserId"`
}

// Registry exposes widget resolution for HTTP handlers.
type Registry interface {
	FindByPublicID(publicID string) (Ref, bool)
}

// MemoryRegistry implements Registry with an in-memory slice, suitable for
// single-tenant deployments configured from the environment.
type MemoryRegistry struct {
	items []Ref
}

// NewMemoryRegistry returns a MemoryRegistry preloaded with the supplied refs.
func NewMemoryRegistry(items []Ref) *MemoryRegistry {
	return &MemoryRegistry{items: append([]Ref(nil), items...)}
}

// FindByPublicID looks up a widget by its public identifier.
func (r *MemoryRegistry) FindByPublicID(publicID string) (Ref, bool) {
	for _, item := range r.items {
		if item.PublicID == publicID {
			return item, true
		}
	}
	return Ref{}, false
}
