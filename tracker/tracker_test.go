package tracker

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//fakeConn 仅支持tracker用到的命令
type fakeConn struct {
	mu     *sync.Mutex
	values map[string][]byte
	hashes map[string]map[string][]byte
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch strings.ToLower(cmd) {
	case "":
		return nil, nil
	case "get":
		v, ok := c.values[toString(args[0])]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "set":
		c.values[toString(args[0])] = []byte(toString(args[1]))
		return "OK", nil
	case "hset":
		key := toString(args[0])
		if c.hashes[key] == nil {
			c.hashes[key] = map[string][]byte{}
		}
		c.hashes[key][toString(args[1])] = []byte(toString(args[2]))
		return int64(1), nil
	case "hdel":
		delete(c.hashes[toString(args[0])], toString(args[1]))
		return int64(1), nil
	case "hgetall":
		var out []interface{}
		for k, v := range c.hashes[toString(args[0])] {
			out = append(out, []byte(k), v)
		}
		return out, nil
	case "del":
		for _, a := range args {
			delete(c.values, toString(a))
			delete(c.hashes, toString(a))
		}
		return int64(len(args)), nil
	}
	return nil, fmt.Errorf("unsupported command %s", cmd)
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error { return nil }
func (c *fakeConn) Send(string, ...interface{}) error { return nil }
func (c *fakeConn) Flush() error { return nil }
func (c *fakeConn) Receive() (interface{}, error) { return nil, nil }

func newFakeRedis() *Redis {
	conn := &fakeConn{mu: &sync.Mutex{}, values: map[string][]byte{}, hashes: map[string]map[string][]byte{}}
	return NewRedisPool(&redis.Pool{
		Dial: func() (redis.Conn, error) { return conn, nil },
	})
}

func trackers() map[string]func() Tracker {
	return map[string]func() Tracker{
		"memory": func() Tracker { return NewMemory() },
		"redis":  func() Tracker { return newFakeRedis() },
	}
}

func TestTrackerLifecycle(t *testing.T) {
	for name, mk := range trackers() {
		t.Run(name, func(t *testing.T) {
			tr := mk()
			defer tr.Close()

			z, c := tr.Cursor("job")
			assert.Equal(t, -1, z)
			assert.Equal(t, -1, c)
			require.NoError(t, tr.SaveCursor("job", 5, 12))
			z, c = tr.Cursor("job")
			assert.Equal(t, 5, z)
			assert.Equal(t, 12, c)

			require.NoError(t, tr.Fail("job", ErrTile{Z: 3, X: 2, Y: 1, Res: ReasonSave}))
			require.NoError(t, tr.Fail("job", ErrTile{Z: 2, X: 0, Y: 1, Res: "boom"}))
			require.NoError(t, tr.Fail("job", ErrTile{Z: 3, X: 1, Y: 1, Res: ReasonNil}))

			failed, err := tr.Failed("job")
			require.NoError(t, err)
			require.Len(t, failed, 2)
			assert.Equal(t, ErrTile{Z: 2, X: 0, Y: 1, Res: "boom"}, failed[0])

			nils, err := tr.Nil("job")
			require.NoError(t, err)
			assert.Equal(t, []ErrTile{{Z: 3, X: 1, Y: 1, Res: ReasonNil}}, nils)

			require.NoError(t, tr.Resolve("job", 2, 0, 1))
			failed, err = tr.Failed("job")
			require.NoError(t, err)
			assert.Equal(t, []ErrTile{{Z: 3, X: 2, Y: 1, Res: ReasonSave}}, failed)

			require.NoError(t, tr.Clean("job"))
			z, _ = tr.Cursor("job")
			assert.Equal(t, -1, z)
			failed, err = tr.Failed("job")
			require.NoError(t, err)
			assert.Empty(t, failed)
		})
	}
}

func TestImportExportFailed(t *testing.T) {
	tr := NewMemory()
	n, err := ImportFailed(tr, "job", strings.NewReader("4/3/2\n\n1/0/1\n"), ReasonSave)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var buf bytes.Buffer
	n, err = ExportFailed(tr, "job", &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "1/0/1\n4/3/2\n", buf.String())

	_, err = ImportFailed(tr, "job", strings.NewReader("4/3\n"), ReasonSave)
	assert.Error(t, err)
	_, err = ImportFailed(tr, "job", strings.NewReader("4/x/3\n"), ReasonSave)
	assert.Error(t, err)
}
