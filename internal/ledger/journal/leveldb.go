package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"ballot/internal/ledger"
	"ballot/pkg/platform/sentinel"
)

// blockPrefix namespaces block records. Keys are prefix + big-endian index so
// an iterator returns blocks in chain order.
var blockPrefix = []byte("blk/")

// LevelDBJournal stores one CBOR record per block in a local LevelDB.
type LevelDBJournal struct {
	db  *leveldb.DB
	wo  *opt.WriteOptions
	enc cbor.EncMode
	dec cbor.DecMode
}

// OpenLevelDB opens (or creates) the journal at path.
func OpenLevelDB(path string) (*LevelDBJournal, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb journal %s: %w", path, err)
	}
	return newLevelDB(db)
}

func newLevelDB(db *leveldb.DB) (*LevelDBJournal, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("leveldb journal encoder: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("leveldb journal decoder: %w", err)
	}
	return &LevelDBJournal{db: db, wo: &opt.WriteOptions{Sync: true}, enc: enc, dec: dec}, nil
}

func blockKey(index int64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], uint64(index))
	return key
}

func (j *LevelDBJournal) Append(ctx context.Context, block ledger.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if block.Index < 0 {
		return fmt.Errorf("block %d: %w", block.Index, sentinel.ErrInvalidState)
	}
	key := blockKey(block.Index)

	existing, err := j.db.Get(key, nil)
	switch {
	case err == nil:
		var stored record
		if err := j.dec.Unmarshal(existing, &stored); err != nil {
			return fmt.Errorf("block %d: %w", block.Index, ErrCorruptRecord)
		}
		if !bytes.Equal(stored.Hash, block.Hash[:]) {
			return fmt.Errorf("block %d: %w", block.Index, sentinel.ErrConflict)
		}
		return nil
	case !errors.Is(err, leveldb.ErrNotFound):
		return fmt.Errorf("read block %d: %w", block.Index, err)
	}

	value, err := j.enc.Marshal(toRecord(block))
	if err != nil {
		return fmt.Errorf("encode block %d: %w", block.Index, err)
	}
	if err := j.db.Put(key, value, j.wo); err != nil {
		return fmt.Errorf("write block %d: %w", block.Index, err)
	}
	return nil
}

func (j *LevelDBJournal) LoadAll(ctx context.Context) ([]ledger.Block, error) {
	iter := j.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer iter.Release()

	var out []ledger.Block
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var r record
		if err := j.dec.Unmarshal(iter.Value(), &r); err != nil {
			return nil, fmt.Errorf("decode %x: %w", iter.Key(), ErrCorruptRecord)
		}
		b, err := r.block()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate leveldb journal: %w", err)
	}
	return out, nil
}

func (j *LevelDBJournal) Close() error {
	return j.db.Close()
}
