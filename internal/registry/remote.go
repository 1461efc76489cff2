package registry

// RemoteClient publishes stable formula bundles to a remote registry.
// The transport is a collaborator; this package only defines the
// contract the push flow depends on.
type RemoteClient interface {
	// Publish uploads a bundle. The bundle's version must be stable —
	// callers are responsible for never handing a WIP version here.
	Publish(f *Formula) error
}

// RemoteFake records published bundles for tests. Err, when set, is
// returned from every Publish call.
type RemoteFake struct {
	Published []*Formula
	Err       error
}

// Publish records the bundle.
func (r *RemoteFake) Publish(f *Formula) error {
	if r.Err != nil {
		return r.Err
	}
	r.Published = append(r.Published, f)
	return nil
}

var _ RemoteClient = (*RemoteFake)(nil)
