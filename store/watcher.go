package store

// Watcher is used to receive notifications when the store content changes.
//
// Implementations of Watcher must not block and must not call back into
// the store.
type Watcher interface {
	// OnUpsert notifies that an entry was created or replaced, whether by
	// a local write or a reconciled remote entry.
	OnUpsert(entry Entry)

	// OnDelete notifies that an entry was removed by a local delete.
	OnDelete(key string)

	// OnExpired notifies that an entry was removed by the expiry sweeper.
	OnExpired(key string)
}

type nopWatcher struct {
}

func newNopWatcher() *nopWatcher {
	return &nopWatcher{}
}

func (w *nopWatcher) OnUpsert(_ Entry) {}

func (w *nopWatcher) OnDelete(_ string) {}

func (w *nopWatcher) OnExpired(_ string) {}

var _ Watcher = &nopWatcher{}
