package storage

import "context"

// OpKind identifies the store operation carried by an Op.
type OpKind int

const (
	OpHashGetAll      OpKind = iota // read every field of a hash
	OpHashSet                       // merge fields into a hash
	OpDelete                        // remove a key of any type
	OpSortedSetAdd                  // add or rescore a sorted set member
	OpSortedSetRemove               // remove a sorted set member
)

func (k OpKind) String() string {
	switch k {
	case OpHashGetAll:
		return "hgetall"
	case OpHashSet:
		return "hset"
	case OpDelete:
		return "del"
	case OpSortedSetAdd:
		return "zadd"
	case OpSortedSetRemove:
		return "zrem"
	default:
		return "unknown"
	}
}

// Op is a single operation queued in a batch.
type Op struct {
	Kind   OpKind
	Key    string
	Fields map[string]string // OpHashSet
	Score  float64           // OpSortedSetAdd
	Member string            // OpSortedSetAdd, OpSortedSetRemove
}

// Result is the outcome of one Op. Fields is set for OpHashGetAll only.
type Result struct {
	Fields map[string]string
	Err    error
}

// Batch collects operations to submit together with Client.Exec.
//
// A batch bounds round trips, nothing more: operations are applied one by one
// and a failure half way leaves the earlier ones applied.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{ops: make([]Op, 0, 4)}
}

// HashGetAll queues a read of the hash at key.
func (b *Batch) HashGetAll(key string) *Batch {
	b.ops = append(b.ops, Op{Kind: OpHashGetAll, Key: key})
	return b
}

// HashSet queues a merge of fields into the hash at key.
func (b *Batch) HashSet(key string, fields map[string]string) *Batch {
	b.ops = append(b.ops, Op{Kind: OpHashSet, Key: key, Fields: fields})
	return b
}

// Delete queues the removal of key.
func (b *Batch) Delete(key string) *Batch {
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: key})
	return b
}

// SortedSetAdd queues an upsert of member with score.
func (b *Batch) SortedSetAdd(key string, score float64, member string) *Batch {
	b.ops = append(b.ops, Op{Kind: OpSortedSetAdd, Key: key, Score: score, Member: member})
	return b
}

// SortedSetRemove queues the removal of member.
func (b *Batch) SortedSetRemove(key, member string) *Batch {
	b.ops = append(b.ops, Op{Kind: OpSortedSetRemove, Key: key, Member: member})
	return b
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Ops returns the queued operations in submission order.
func (b *Batch) Ops() []Op {
	return b.ops
}

// Exec submits the batch through cli.
func (b *Batch) Exec(ctx context.Context, cli Client) ([]Result, error) {
	return cli.Exec(ctx, b.ops)
}

// FirstError returns the first per-operation error in results, if any.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
