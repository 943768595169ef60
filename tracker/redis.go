package tracker

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	log "github.com/sirupsen/logrus"
)

//Redis 任务记录保存在redis,键为cursor:ID、fail_list:ID、nil_list:ID
type Redis struct {
	pool *redis.Pool
}

//NewRedis addr形如127.0.0.1:6379
func NewRedis(addr string) *Redis {
	return &Redis{pool: &redis.Pool{
		MaxIdle:     16,
		MaxActive:   32,
		IdleTimeout: 120 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}}
}

//NewRedisPool 使用已有连接池
func NewRedisPool(pool *redis.Pool) *Redis {
	return &Redis{pool: pool}
}

func closeConn(conn redis.Conn) {
	if err := conn.Close(); err != nil {
		log.Errorf("redis connection close failure")
	}
}

func (r *Redis) Cursor(id string) (int, int) {
	conn := r.pool.Get()
	defer closeConn(conn)
	replay, err := redis.String(conn.Do("get", "cursor:"+id))
	if err != nil {
		return -1, -1
	}
	cursor := strings.Split(replay, ":")
	if len(cursor) != 2 {
		return -1, -1
	}
	zoom, err := strconv.Atoi(cursor[0])
	if err != nil {
		return -1, -1
	}
	col, err := strconv.Atoi(cursor[1])
	if err != nil {
		return -1, -1
	}
	return zoom, col
}

func (r *Redis) SaveCursor(id string, zoom, col int) error {
	conn := r.pool.Get()
	defer closeConn(conn)
	_, err := conn.Do("set", "cursor:"+id, strconv.Itoa(zoom)+":"+strconv.Itoa(col))
	if err != nil {
		log.Errorf("redis save cursor failure")
	}
	return err
}

func (r *Redis) Fail(id string, et ErrTile) error {
	conn := r.pool.Get()
	defer closeConn(conn)
	val, err := json.Marshal(et)
	if err != nil {
		return err
	}
	list := "fail_list:"
	if isNil(et.Res) {
		list = "nil_list:"
	}
	if _, err := conn.Do("hset", list+id, et.key(), val); err != nil {
		log.Errorf("redis save tile failure")
		return err
	}
	return nil
}

func (r *Redis) list(key string) ([]ErrTile, error) {
	conn := r.pool.Get()
	defer closeConn(conn)
	alls, err := redis.StringMap(conn.Do("hgetall", key))
	if err != nil {
		return nil, err
	}
	tiles := make(map[string]ErrTile, len(alls))
	for k, v := range alls {
		var et ErrTile
		if err := json.Unmarshal([]byte(v), &et); err != nil {
			log.Warnf("skip malformed record %s: %s", k, err)
			continue
		}
		tiles[k] = et
	}
	return sorted(tiles), nil
}

func (r *Redis) Failed(id string) ([]ErrTile, error) {
	return r.list("fail_list:" + id)
}

func (r *Redis) Nil(id string) ([]ErrTile, error) {
	return r.list("nil_list:" + id)
}

func (r *Redis) Resolve(id string, z, x, y int) error {
	conn := r.pool.Get()
	defer closeConn(conn)
	_, err := conn.Do("hdel", "fail_list:"+id, ErrTile{X: x, Y: y, Z: z}.key())
	return err
}

func (r *Redis) Clean(id string) error {
	conn := r.pool.Get()
	defer closeConn(conn)
	_, err := conn.Do("del", "cursor:"+id, "nil_list:"+id, "fail_list:"+id)
	return err
}

func (r *Redis) Close() error {
	return r.pool.Close()
}
