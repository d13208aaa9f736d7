package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "19:abc:user@example", Key("19:abc", "user@example"))
}

func TestWithRecordCreatesOnFirstUse(t *testing.T) {
	reg := NewRegistry(time.Hour, nil)
	defer reg.Stop()

	err := reg.WithRecord("c:u", Participant{UserID: "u", DisplayName: "Ana"}, func(rec *Record) error {
		rec.AppendMessage("hola", SenderUser)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	err = reg.WithRecord("c:u", Participant{UserID: "u"}, func(rec *Record) error {
		assert.Equal(t, 1, rec.MessageCount())
		assert.Equal(t, "Ana", rec.Participant.DisplayName)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
}

func TestWithRecordSerializesSameKey(t *testing.T) {
	reg := NewRegistry(time.Hour, nil)
	defer reg.Stop()

	const turns = 50
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.WithRecord("c:u", Participant{UserID: "u"}, func(rec *Record) error {
				n := rec.MessageCount()
				rec.AppendMessage("turn", SenderUser)
				// Under serialization each callback observes exactly its
				// predecessor's count plus one after the append.
				if rec.MessageCount() != n+1 {
					t.Error("interleaved mutation detected")
				}
				return nil
			})
		}()
	}
	wg.Wait()

	reg.Peek("c:u", func(rec *Record) {
		require.NotNil(t, rec)
		assert.Equal(t, turns, rec.MessageCount())
	})
}

func TestIndependentKeysAreIndependent(t *testing.T) {
	reg := NewRegistry(time.Hour, nil)
	defer reg.Stop()

	_ = reg.WithRecord(Key("conv", "alice"), Participant{UserID: "alice"}, func(rec *Record) error {
		rec.AppendMessage("from alice", SenderUser)
		return nil
	})
	_ = reg.WithRecord(Key("conv", "bob"), Participant{UserID: "bob"}, func(rec *Record) error {
		assert.Equal(t, 0, rec.MessageCount())
		return nil
	})
	assert.Equal(t, 2, reg.Len())
}

func TestDeleteInvokesArchiver(t *testing.T) {
	var archived []*Record
	reg := NewRegistry(time.Hour, func(rec *Record) { archived = append(archived, rec) })
	defer reg.Stop()

	_ = reg.WithRecord("c:u", Participant{UserID: "u"}, func(rec *Record) error { return nil })
	reg.Delete("c:u")

	assert.Equal(t, 0, reg.Len())
	require.Len(t, archived, 1)
	assert.Equal(t, "c:u", archived[0].ID)

	// Deleting a missing key is a no-op.
	reg.Delete("missing")
	assert.Len(t, archived, 1)
}

func TestEvictIdleOnlyRemovesCompleted(t *testing.T) {
	var archived []*Record
	reg := NewRegistry(10*time.Millisecond, func(rec *Record) { archived = append(archived, rec) })
	defer reg.Stop()

	_ = reg.WithRecord("done:u", Participant{UserID: "u"}, func(rec *Record) error {
		rec.SetState(StateCompleted)
		return nil
	})
	_ = reg.WithRecord("live:u", Participant{UserID: "u"}, func(rec *Record) error {
		rec.AppendMessage("still talking", SenderUser)
		return nil
	})

	time.Sleep(25 * time.Millisecond)
	evicted := reg.EvictIdle()

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, reg.Len())
	require.Len(t, archived, 1)
	assert.Equal(t, "done:u", archived[0].ID)

	// The active record stays no matter how stale.
	assert.Equal(t, 0, reg.EvictIdle())
}

func TestWithRecordRefreshesIdleClock(t *testing.T) {
	reg := NewRegistry(20*time.Millisecond, nil)
	defer reg.Stop()

	_ = reg.WithRecord("done:u", Participant{UserID: "u"}, func(rec *Record) error {
		rec.SetState(StateCompleted)
		return nil
	})

	time.Sleep(30 * time.Millisecond)
	// A late touch, even on a completed record, resets the idle clock.
	_ = reg.WithRecord("done:u", Participant{UserID: "u"}, func(rec *Record) error { return nil })
	assert.Equal(t, 0, reg.EvictIdle())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, reg.EvictIdle())
}

func TestPeekMissingKey(t *testing.T) {
	reg := NewRegistry(time.Hour, nil)
	defer reg.Stop()

	found := reg.Peek("nope", func(rec *Record) {
		assert.Nil(t, rec)
	})
	assert.False(t, found)
}
