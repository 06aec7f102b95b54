package journal

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"lukechampine.com/blake3"
)

const verifyBatch = 500

// ErrChainBroken reports an entry whose digest does not match its content or
// predecessor.
var ErrChainBroken = errors.New("journal: digest chain broken")

func digest(prev string, e *Entry) string {
	buf := make([]byte, 0, len(prev)+len(e.Type)+len(e.Attributes)+24)
	buf = append(buf, prev...)
	buf = append(buf, '|')
	buf = strconv.AppendUint(buf, e.Sequence, 10)
	buf = append(buf, '|')
	buf = append(buf, e.Type...)
	buf = append(buf, '|')
	buf = append(buf, e.Attributes...)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// Range returns up to limit entries with a sequence above after, oldest first.
func (j *Journal) Range(after uint64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = verifyBatch
	}
	var entries []Entry
	err := j.db.Where("sequence > ?", after).Order("sequence asc").Limit(limit).Find(&entries).Error
	return entries, err
}

// Verify walks the whole journal and recomputes the digest chain. It returns
// the number of entries checked.
func (j *Journal) Verify() (uint64, error) {
	var (
		after   uint64
		prev    string
		checked uint64
	)
	for {
		batch, err := j.Range(after, verifyBatch)
		if err != nil {
			return checked, err
		}
		if len(batch) == 0 {
			return checked, nil
		}
		for i := range batch {
			entry := &batch[i]
			if entry.Sequence != after+1 {
				return checked, fmt.Errorf("%w: gap before sequence %d", ErrChainBroken, entry.Sequence)
			}
			if want := digest(prev, entry); want != entry.Digest {
				return checked, fmt.Errorf("%w: sequence %d", ErrChainBroken, entry.Sequence)
			}
			prev = entry.Digest
			after = entry.Sequence
			checked++
		}
	}
}
