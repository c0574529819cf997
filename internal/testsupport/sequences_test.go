package testsupport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSequence_Increments(t *testing.T) {
	seq1 := NextSequence()
	seq2 := NextSequence()
	seq3 := NextSequence()

	assert.Equal(t, seq1+1, seq2, "Should increment by 1")
	assert.Equal(t, seq2+1, seq3, "Should increment by 1")
}

func TestUniqueName_GeneratesUnique(t *testing.T) {
	name1 := UniqueName("user_activity")
	name2 := UniqueName("user_activity")

	assert.NotEqual(t, name1, name2)
	assert.Regexp(t, `^user_activity_[0-9]+$`, name1)
}

func TestUniqueUserIDAndQuery(t *testing.T) {
	assert.NotEqual(t, UniqueUserID(), UniqueUserID())
	assert.Contains(t, UniqueUserID(), "test-user-")

	q := UniqueQuery("Electronics")
	assert.Contains(t, q, "Electronics trade with partner ")
}

func TestNextSequence_Concurrent(t *testing.T) {
	const workers = 20
	const perWorker = 50

	var (
		mu   sync.Mutex
		seen = make(map[uint64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				seq := NextSequence()
				mu.Lock()
				seen[seq] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker, "all sequence numbers are unique")
}
