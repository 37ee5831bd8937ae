package store

import (
	"bytes"

	"github.com/google/btree"
	"github.com/iov-one/custody/errors"
)

// ascendBtree returns all btree items within the range, deleted markers
// included.
func ascendBtree(bt *btree.BTree, start, end []byte) []btree.Item {
	var items []btree.Item
	collect := func(item btree.Item) bool {
		items = append(items, item)
		return true
	}
	switch {
	case start == nil && end == nil:
		bt.Ascend(collect)
	case start == nil:
		bt.AscendLessThan(bkey{end}, collect)
	case end == nil:
		bt.AscendGreaterOrEqual(bkey{start}, collect)
	default:
		bt.AscendRange(bkey{start}, bkey{end}, collect)
	}
	return items
}

// mergeIterator combines the items of a cache with the iterator of the
// store it wraps. Cached values and deletes take precedence.
type mergeIterator struct {
	items []btree.Item
	idx   int

	parent     Iterator
	parentDone bool
	peeked     bool
	pkey, pval []byte
}

var _ Iterator = (*mergeIterator)(nil)

func newMergeIterator(items []btree.Item, parent Iterator) *mergeIterator {
	return &mergeIterator{items: items, parent: parent}
}

func (m *mergeIterator) peek() error {
	if m.peeked || m.parentDone {
		return nil
	}
	k, v, err := m.parent.Next()
	if errors.ErrIteratorDone.Is(err) {
		m.parentDone = true
		return nil
	}
	if err != nil {
		return err
	}
	m.pkey, m.pval, m.peeked = k, v, true
	return nil
}

func (m *mergeIterator) Next() ([]byte, []byte, error) {
	for {
		if err := m.peek(); err != nil {
			return nil, nil, err
		}

		if m.idx >= len(m.items) {
			if !m.peeked {
				return nil, nil, errors.ErrIteratorDone
			}
			m.peeked = false
			return m.pkey, m.pval, nil
		}

		own := m.items[m.idx]
		ownKey := own.(keyer).Key()
		if m.peeked {
			switch cmp := bytes.Compare(m.pkey, ownKey); {
			case cmp < 0:
				m.peeked = false
				return m.pkey, m.pval, nil
			case cmp == 0:
				// Shadowed by the cache.
				m.peeked = false
			}
		}

		m.idx++
		if s, ok := own.(setItem); ok {
			return s.key, s.value, nil
		}
	}
}

func (m *mergeIterator) Release() {
	m.items = nil
	m.parent.Release()
}
