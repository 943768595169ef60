package tracker

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

//失败原因,空瓦片进入nil列表,其它进入fail列表
const (
	ReasonNil  = "nil tile"
	ReasonSave = "save failure"
)

//ErrTile 失败瓦片记录
type ErrTile struct {
	X   int    `json:"x"`
	Y   int    `json:"y"`
	Z   int    `json:"z"`
	Res string `json:"res"`
}

func (et ErrTile) key() string {
	return "tile_" + strconv.Itoa(et.X) + "_" + strconv.Itoa(et.Y) + "_" + strconv.Itoa(et.Z)
}

func isNil(res string) bool {
	return res == ReasonNil || res == "resp 404"
}

//Tracker 任务游标与失败瓦片记录
type Tracker interface {
	//Cursor 返回上次保存的层级与列号,没有时返回-1,-1
	Cursor(id string) (int, int)
	SaveCursor(id string, zoom, col int) error
	Fail(id string, et ErrTile) error
	Failed(id string) ([]ErrTile, error)
	Nil(id string) ([]ErrTile, error)
	Resolve(id string, z, x, y int) error
	Clean(id string) error
	Close() error
}

//Memory 进程内记录,用于不接redis的单次任务与测试
type Memory struct {
	mu      sync.Mutex
	cursors map[string][2]int
	fails   map[string]map[string]ErrTile
	nils    map[string]map[string]ErrTile
}

func NewMemory() *Memory {
	return &Memory{
		cursors: map[string][2]int{},
		fails:   map[string]map[string]ErrTile{},
		nils:    map[string]map[string]ErrTile{},
	}
}

func (m *Memory) Cursor(id string) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[id]
	if !ok {
		return -1, -1
	}
	return c[0], c[1]
}

func (m *Memory) SaveCursor(id string, zoom, col int) error {
	m.mu.Lock()
	m.cursors[id] = [2]int{zoom, col}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Fail(id string, et ErrTile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lists := m.fails
	if isNil(et.Res) {
		lists = m.nils
	}
	if lists[id] == nil {
		lists[id] = map[string]ErrTile{}
	}
	lists[id][et.key()] = et
	return nil
}

func (m *Memory) Failed(id string) ([]ErrTile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sorted(m.fails[id]), nil
}

func (m *Memory) Nil(id string) ([]ErrTile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sorted(m.nils[id]), nil
}

func (m *Memory) Resolve(id string, z, x, y int) error {
	m.mu.Lock()
	delete(m.fails[id], ErrTile{X: x, Y: y, Z: z}.key())
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clean(id string) error {
	m.mu.Lock()
	delete(m.cursors, id)
	delete(m.fails, id)
	delete(m.nils, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

func sorted(list map[string]ErrTile) []ErrTile {
	out := make([]ErrTile, 0, len(list))
	for _, et := range list {
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return out
}

//ImportFailed 读取z/x/y行写入失败列表,返回导入数
func ImportFailed(t Tracker, id string, r io.Reader, res string) (int, error) {
	scanner := bufio.NewScanner(r)
	count := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		srt := strings.Split(text, "/")
		if len(srt) != 3 {
			return count, fmt.Errorf("line %d: expect z/x/y, got %q", line, text)
		}
		var zxy [3]int
		for i, s := range srt {
			v, err := strconv.Atoi(s)
			if err != nil || v < 0 {
				return count, fmt.Errorf("line %d: invalid number %q", line, s)
			}
			zxy[i] = v
		}
		if err := t.Fail(id, ErrTile{Z: zxy[0], X: zxy[1], Y: zxy[2], Res: res}); err != nil {
			return count, err
		}
		count++
	}
	return count, scanner.Err()
}

//ExportFailed 以z/x/y行写出失败列表
func ExportFailed(t Tracker, id string, w io.Writer) (int, error) {
	list, err := t.Failed(id)
	if err != nil {
		return 0, err
	}
	for i, et := range list {
		if _, err := fmt.Fprintf(w, "%d/%d/%d\n", et.Z, et.X, et.Y); err != nil {
			return i, err
		}
	}
	return len(list), nil
}
