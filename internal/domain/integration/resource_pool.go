package integration

// ResourcePool indexes related resources of one response by (type, id).
// References without a type fall back to an id-only index; when several
// resources share an id the first one wins there.
type ResourcePool struct {
	byRef map[ResourceRef]*Resource
	byID  map[string]*Resource
}

// NewResourcePool builds a pool from included resources.
func NewResourcePool(resources []Resource) *ResourcePool {
	p := &ResourcePool{
		byRef: make(map[ResourceRef]*Resource, len(resources)),
		byID:  make(map[string]*Resource, len(resources)),
	}
	for i := range resources {
		p.Add(resources[i])
	}
	return p
}

// Add puts a resource into the pool. Later duplicates of the same (type, id)
// replace earlier ones.
func (p *ResourcePool) Add(r Resource) {
	res := r
	p.byRef[res.Ref()] = &res
	if _, exists := p.byID[res.ID]; !exists {
		p.byID[res.ID] = &res
	}
}

// Resolve looks up the resource a reference points to.
func (p *ResourcePool) Resolve(ref ResourceRef) (*Resource, bool) {
	if p == nil || ref.ID == "" {
		return nil, false
	}
	if ref.Type == "" {
		r, ok := p.byID[ref.ID]
		return r, ok
	}
	r, ok := p.byRef[ref]
	return r, ok
}

// OfType returns every resource of the given type, in no particular order.
func (p *ResourcePool) OfType(resourceType string) []*Resource {
	if p == nil {
		return nil
	}
	var out []*Resource
	for ref, r := range p.byRef {
		if ref.Type == resourceType {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of distinct (type, id) entries.
func (p *ResourcePool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.byRef)
}
