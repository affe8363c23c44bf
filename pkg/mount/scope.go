package mount

import "context"

// Scope tracks every mount acquired during one flow execution so they can
// all be released, in reverse acquisition order, before the flow returns.
// Flows defer ReleaseAll immediately after creating the scope, which makes
// release unconditional across normal completion, early return and error.
type Scope struct {
	mgr     *Manager
	handles []*Handle
}

// NewScope creates an empty scope bound to this manager.
func (m *Manager) NewScope() *Scope {
	return &Scope{mgr: m}
}

// Acquire mounts through the owning manager and registers the handle for
// release.
func (s *Scope) Acquire(ctx context.Context, source, target string, opts Options) (*Handle, error) {
	h, err := s.mgr.Acquire(ctx, source, target, opts)
	if err != nil {
		return nil, err
	}
	s.handles = append(s.handles, h)
	return h, nil
}

// ReleaseAll releases every registered handle, most recent first. A
// filesystem mounted on top of a partition is therefore torn down before
// the image mount it was populated from.
func (s *Scope) ReleaseAll(ctx context.Context) {
	for i := len(s.handles) - 1; i >= 0; i-- {
		s.mgr.Release(ctx, s.handles[i])
	}
	s.handles = nil
}

// Active returns the number of handles not yet released.
func (s *Scope) Active() int { return len(s.handles) }
