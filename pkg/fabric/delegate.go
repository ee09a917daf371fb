package fabric

// FabricTableDelegate receives notifications about fabric table changes.
// Implementations are invoked synchronously from the Table method that
// triggered the change, so delegate callbacks must not call back into the
// Table (re-entrant lock).
type FabricTableDelegate interface {
	// OnFabricPersisted is called after a fabric entry has been written to
	// persistent storage (on commissioning or update).
	OnFabricPersisted(index FabricIndex)

	// OnFabricDeleted is called after a fabric entry has been removed from
	// persistent storage.
	OnFabricDeleted(index FabricIndex)
}

// AddDelegate registers a delegate for fabric table change notifications.
// Delegates are de-duplicated by identity: registering the same delegate
// twice has no additional effect.
func (t *Table) AddDelegate(d FabricTableDelegate) {
	if d == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.delegates {
		if existing == d {
			return
		}
	}
	t.delegates = append(t.delegates, d)
}

func (t *Table) notifyPersisted(index FabricIndex) {
	for _, d := range t.delegates {
		d.OnFabricPersisted(index)
	}
}

func (t *Table) notifyDeleted(index FabricIndex) {
	for _, d := range t.delegates {
		d.OnFabricDeleted(index)
	}
}
