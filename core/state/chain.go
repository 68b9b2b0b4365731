package state

// ChainHead is the host's current block height and timestamp.
type ChainHead struct {
	Height uint64
	Time   uint64
}

var chainHeadKeyBytes = []byte("chain/head")

// ChainHeadGet loads the persisted head. A fresh database reports false.
func (m *Manager) ChainHeadGet() (ChainHead, bool, error) {
	var head ChainHead
	ok, err := m.KVGet(chainHeadKeyBytes, &head)
	return head, ok, err
}

// ChainHeadPut persists head.
func (m *Manager) ChainHeadPut(head ChainHead) error {
	return m.KVPut(chainHeadKeyBytes, head)
}
