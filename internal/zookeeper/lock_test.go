package zookeeper

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSequenceOrderingIgnoresProtectedPrefix(t *testing.T) {
	children := []string{
		"_c_ffffffff-lock-0000000012",
		"_c_00000000-lock-0000000010",
		"_c_88888888-lock-0000000011",
	}
	sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

	assert.Equal(t, []string{
		"_c_00000000-lock-0000000010",
		"_c_88888888-lock-0000000011",
		"_c_ffffffff-lock-0000000012",
	}, children)
}

func TestSequenceOfShortName(t *testing.T) {
	assert.Equal(t, "lock", sequenceOf("lock"))
}

type fakeUnlocker struct {
	err   error
	calls int
}

func (f *fakeUnlocker) Unlock() error {
	f.calls++
	return f.err
}

func captureGlobalLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := zlog.Logger
	zlog.Logger = zerolog.New(&buf)
	t.Cleanup(func() { zlog.Logger = prev })
	return &buf
}

func TestReleaseFuncLogsUnlockFailure(t *testing.T) {
	buf := captureGlobalLog(t)
	lock := &fakeUnlocker{err: errors.New("zk: connection closed")}

	releaseFunc(lock, "item-7")()

	assert.Equal(t, 1, lock.calls)
	assert.Contains(t, buf.String(), `"resource":"item-7"`)
	assert.Contains(t, buf.String(), "zk: connection closed")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestReleaseFuncQuietOnSuccess(t *testing.T) {
	buf := captureGlobalLog(t)
	lock := &fakeUnlocker{}

	releaseFunc(lock, "item-7")()

	assert.Equal(t, 1, lock.calls)
	assert.Empty(t, buf.String())
}
