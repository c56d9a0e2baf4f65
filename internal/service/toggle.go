package service

import (
	"context"
	"errors"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

// membershipToggle flips member in the array at setPath of one document,
// keeping the optional counter at countPath equal to the array length. The
// branch is chosen from the state the caller read; the write itself is
// preconditioned on that state, so concurrent toggles never double count.
type membershipToggle struct {
	collection string
	id         string
	setPath    string
	countPath  string
	member     string
	// present is the membership the caller observed.
	present bool
	// onAdd is written together with the add branch.
	onAdd []docstore.Update
}

// apply reports whether the member was added and whether the store changed.
// changed is false when a concurrent toggle already moved the state.
func (t membershipToggle) apply(ctx context.Context, store docstore.Store) (added, changed bool, err error) {
	var (
		updates []docstore.Update
		pre     docstore.Precondition
	)
	if t.present {
		updates = append(updates, docstore.Update{Path: t.setPath, Value: docstore.ArrayRemove(t.member)})
		if t.countPath != "" {
			updates = append(updates, docstore.Update{Path: t.countPath, Value: docstore.Increment(-1)})
		}
		pre = docstore.Contains(t.setPath, t.member)
	} else {
		updates = append(updates, docstore.Update{Path: t.setPath, Value: docstore.ArrayUnion(t.member)})
		if t.countPath != "" {
			updates = append(updates, docstore.Update{Path: t.countPath, Value: docstore.Increment(1)})
		}
		updates = append(updates, t.onAdd...)
		pre = docstore.NotContains(t.setPath, t.member)
	}

	err = store.Update(ctx, t.collection, t.id, updates, pre)
	switch {
	case err == nil:
		return !t.present, true, nil
	case errors.Is(err, docstore.ErrPreconditionFailed):
		return !t.present, false, nil
	default:
		return false, false, err
	}
}
