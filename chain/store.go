package chain

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/domainmessage"
)

// BlockStore persists canonical blocks to <data>/blockchain/.
// Implementations need not be safe for concurrent use; the chain
// engine's lock already serializes all callers.
type BlockStore interface {
	Append(block *domainmessage.Block) error
	Load(id uint64) (*domainmessage.Block, error)
	Close() error
}

// fileBlockStore stores each block as its own file named by block_id
// under dir. The chain engine rebuilds every in-memory index —
// including the transaction-hash lookup FindTransaction and
// TransactionHistory serve from — by replaying these files in order at
// startup (ReplayFromStore), so the store itself stays a plain
// flat-file payload area with no secondary index of its own.
type fileBlockStore struct {
	dir string
}

// NewFileBlockStore opens (creating if necessary) a block store rooted
// at dir.
func NewFileBlockStore(dir string) (BlockStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating block store directory")
	}
	return &fileBlockStore{dir: dir}, nil
}

func (s *fileBlockStore) blockPath(id uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%020d.blk", id))
}

// Append durably writes block: serialize to a temp file in the same
// directory, fsync it, then atomically rename into place, so a crash
// mid-write never leaves a partial block at the final path.
func (s *fileBlockStore) Append(block *domainmessage.Block) error {
	finalPath := s.blockPath(block.BlockID)
	tmp, err := os.CreateTemp(s.dir, "blk-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp block file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := block.Serialize(tmp); err != nil {
		tmp.Close()
		return errors.Wrap(err, "serializing block")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing block file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp block file")
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return errors.Wrap(err, "renaming block file into place")
	}
	return nil
}

func (s *fileBlockStore) Load(id uint64) (*domainmessage.Block, error) {
	f, err := os.Open(s.blockPath(id))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	block, err := domainmessage.DeserializeBlock(f)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "deserializing stored block")
	}
	return block, nil
}

func (s *fileBlockStore) Close() error {
	return nil
}
