package checkpointer

// nEpoch implements checkpointing every N epochs
type nEpoch struct {
	interval int
	object   Serializable // Object to save
	store    *Store
}

// NewNEpoch returns a checkpointer that saves object to store at the
// end of every n-th epoch, that is whenever (epoch+1) % n == 0. If n is
// not positive, the returned Checkpointer never saves.
func NewNEpoch(n int, object Serializable, store *Store) Checkpointer {
	return &nEpoch{
		interval: n,
		object:   object,
		store:    store,
	}
}

// Checkpoint checkpoints the Checkpointer's tracked object if epoch
// ends an interval
func (n *nEpoch) Checkpoint(epoch int) error {
	if n.interval <= 0 || (epoch+1)%n.interval != 0 {
		return nil
	}
	return n.store.Save(epoch, n.object)
}
