package mbtiles

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

//Version mbtiles版本号
const Version = "1.2"

//输出格式
const (
	FormatMBTiles = "mbtiles"
	FormatMysql   = "mysql"
	FormatFile    = "file"
)

//Tile 待保存的瓦片,坐标为xyz方案
type Tile struct {
	Z, X, Y uint32
	Data    []byte
}

//FlipY xyz行号转tms行号
func FlipY(z, y uint32) uint32 {
	return (1 << z) - y - 1
}

//DB 瓦片库连接
type DB struct {
	db     *sql.DB
	format string
	File   string
}

//Meta 元数据
type Meta struct {
	ID          string
	Name        string
	Description string
	Format      string
	Bounds      orb.Bound //经纬度
	MinZoom     int
	MaxZoom     int
	JSON        string
}

//Items 输出
func (m Meta) Items() map[string]string {
	b := m.Bounds
	c := b.Center()
	return map[string]string{
		"id":          m.ID,
		"name":        m.Name,
		"description": m.Description,
		"basename":    m.Name,
		"format":      m.Format,
		"type":        "overlay",
		"pixel_scale": strconv.Itoa(256),
		"version":     Version,
		"bounds":      fmt.Sprintf(`%f,%f,%f,%f`, b.Min[0], b.Min[1], b.Max[0], b.Max[1]),
		"center":      fmt.Sprintf(`%f,%f,%d`, c[0], c[1], (m.MinZoom+m.MaxZoom)/2),
		"minzoom":     strconv.Itoa(m.MinZoom),
		"maxzoom":     strconv.Itoa(m.MaxZoom),
		"json":        m.JSON,
	}
}

//Open 打开sqlite文件或mysql连接,format为mbtiles或mysql
func Open(format, conn string) (*DB, error) {
	switch format {
	case FormatMBTiles:
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, err
		}
		return &DB{db: db, format: format, File: conn}, nil
	case FormatMysql:
		db, err := sql.Open("mysql", conn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		return &DB{db: db, format: format}, nil
	}
	return nil, fmt.Errorf("unsupported tile store format %q", format)
}

//Create 创建输出库,file为空时按名称放到outdir下
func Create(format, conn, outdir string, meta Meta, resume bool) (*DB, error) {
	if format == FormatMBTiles && conn == "" {
		if err := os.MkdirAll(outdir, os.ModePerm); err != nil {
			return nil, err
		}
		conn = filepath.Join(outdir, fmt.Sprintf("%s.mbtiles", meta.Name))
	}
	d, err := Open(format, conn)
	if err != nil {
		return nil, err
	}
	if err := d.Setup(meta, resume); err != nil {
		d.Close()
		log.Errorf("Database connect and prepare error")
		return nil, err
	}
	return d, nil
}

//Format 库类型
func (d *DB) Format() string {
	return d.format
}

//Setup 建表,resume为真时不再写入元数据
func (d *DB) Setup(meta Meta, resume bool) error {
	var stmts []string
	insert := "insert or ignore into metadata (name, value) values (?, ?)"
	if d.format == FormatMysql {
		stmts = []string{
			"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data mediumblob);",
			"create table if not exists metadata (name VARCHAR(50) , value mediumtext);",
		}
		insert = "insert ignore into metadata (name, value) values (?, ?)"
	} else {
		d.db.SetMaxOpenConns(1)
		if err := optimizeConnection(d.db); err != nil {
			return err
		}
		stmts = []string{
			"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);",
			"create table if not exists metadata (name text, value text);",
		}
	}
	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return err
		}
	}
	if resume {
		return nil
	}
	_, _ = d.db.Exec("create unique index name on metadata (name);")
	_, _ = d.db.Exec("create unique index tile_index on tiles(zoom_level, tile_column, tile_row);")
	for name, value := range meta.Items() {
		if _, err := d.db.Exec(insert, name, value); err != nil {
			return err
		}
	}
	return nil
}

//SaveTiles 批量写入,已存在的瓦片忽略
func (d *DB) SaveTiles(tiles []Tile) error {
	if len(tiles) == 0 {
		return nil
	}
	if d.format == FormatMysql {
		return d.saveToMysql(tiles)
	}
	tx, er := d.db.Begin()
	if er != nil {
		return er
	}
	sqlStr := "insert or ignore into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);"
	for _, tile := range tiles {
		_, err := tx.Exec(sqlStr, tile.Z, tile.X, FlipY(tile.Z, tile.Y), tile.Data)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	err := tx.Commit()
	time.Sleep(time.Microsecond * 50)
	return err
}

func (d *DB) saveToMysql(tiles []Tile) error {
	sqlStr := "insert ignore into tiles (zoom_level, tile_column, tile_row, tile_data) values %s"
	placeholder := "(?,?,?,?)"
	bulkValues := []interface{}{}
	valueStrings := make([]string, 0, len(tiles))
	for _, tile := range tiles {
		valueStrings = append(valueStrings, placeholder)
		bulkValues = append(bulkValues, tile.Z, tile.X, FlipY(tile.Z, tile.Y), tile.Data)
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	res, err := tx.Exec(fmt.Sprintf(sqlStr, strings.Join(valueStrings, ",")), bulkValues...)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	log.Infof("save batch count %d,insert %d", len(tiles), rows)
	return nil
}

//ReadTile 读取xyz瓦片,不存在时返回nil
func (d *DB) ReadTile(z, x, y uint32) ([]byte, error) {
	var data []byte
	err := d.db.QueryRow("select tile_data from tiles where zoom_level=? and tile_column=? and tile_row=?", z, x, FlipY(z, y)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

//Metadata 读取元数据
func (d *DB) Metadata() (map[string]string, error) {
	rows, err := d.db.Query("select name, value from metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	meta := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value
	}
	return meta, rows.Err()
}

//MaxColumn 层级的最大列号,无瓦片时返回-1
func (d *DB) MaxColumn(zoom uint32) (int, error) {
	var max sql.NullInt64
	err := d.db.QueryRow("select max(tile_column) from tiles where zoom_level=?", zoom).Scan(&max)
	if err != nil {
		return -1, err
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

//Column 读取一列瓦片,返回xyz坐标
func (d *DB) Column(zoom uint32, col int) ([]Tile, error) {
	rows, err := d.db.Query("select tile_row, tile_data from tiles where zoom_level=? and tile_column=?", zoom, col)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tiles []Tile
	for rows.Next() {
		var row uint32
		var data []byte
		if err := rows.Scan(&row, &data); err != nil {
			return nil, err
		}
		tiles = append(tiles, Tile{Z: zoom, X: uint32(col), Y: FlipY(zoom, row), Data: data})
	}
	return tiles, rows.Err()
}

//Close 关闭连接
func (d *DB) Close() error {
	return d.db.Close()
}

//SaveToFiles 按z/x/y.ext写出瓦片文件
func SaveToFiles(tile Tile, rootdir, ext string) error {
	dir := filepath.Join(rootdir, strconv.Itoa(int(tile.Z)), strconv.Itoa(int(tile.X)))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	fileName := filepath.Join(dir, fmt.Sprintf(`%d.%s`, tile.Y, ext))
	if err := os.WriteFile(fileName, tile.Data, 0644); err != nil {
		return err
	}
	log.Debugln(fileName)
	return nil
}

func optimizeConnection(db *sql.DB) error {
	_, err := db.Exec("PRAGMA synchronous=1")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA locking_mode=EXCLUSIVE")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA journal_mode=OFF")
	if err != nil {
		return err
	}
	return nil
}
