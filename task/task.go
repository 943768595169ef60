package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	pb "github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"

	"Fast-VTiler/mbtiles"
	"Fast-VTiler/tracker"
)

type State int32

const (
	Initialize State = iota
	Running
	Pause
	Ending
	Aborting
	Terminated
)

//Options 合并任务参数
type Options struct {
	Name        string
	Description string
	Bounds      LngLatBbox
	MinZoom     int
	MaxZoom     int
	Workers     int
	SavePipe    int
	Format      string //mbtiles, mysql, file
	Directory   string
	Conn        string
	Gzip        bool
	Progress    io.Writer //nil时不输出进度条
}

//Task 合并任务
type Task struct {
	ID          string
	Name        string
	Description string
	MinZoom     int
	MaxZoom     int
	CurZoom     int
	CurCol      int
	StartCol    int
	Total       int
	opts        Options
	assembler   *Assembler
	tracker     tracker.Tracker
	out         *mbtiles.DB
	wg          sync.WaitGroup
	workers     chan struct{}
	savingpipe  chan mbtiles.Tile
	saved       chan struct{}
	abort       chan struct{}
	abortOnce   sync.Once
	pause, play chan struct{}
	mu          sync.Mutex
	done        chan struct{}
	signal      atomic.Int32
	failures    atomic.Int64
}

//NewTask 创建合并任务,id非空时从tracker中的游标继续
func NewTask(opts Options, a *Assembler, tr tracker.Tracker, id string) (*Task, error) {
	if a == nil || len(a.Sources) == 0 {
		return nil, errors.New("empty sources")
	}
	if opts.MinZoom < 0 || opts.MaxZoom > 32 || opts.MinZoom > opts.MaxZoom {
		return nil, fmt.Errorf("invalid zoom range %d-%d", opts.MinZoom, opts.MaxZoom)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.SavePipe <= 0 {
		opts.SavePipe = 8
	}
	if opts.Format == "" {
		opts.Format = mbtiles.FormatMBTiles
	}
	if tr == nil {
		tr = tracker.NewMemory()
	}
	task := &Task{
		ID:          uuid.New().String(),
		Name:        opts.Name,
		Description: opts.Description,
		MinZoom:     opts.MinZoom,
		MaxZoom:     opts.MaxZoom,
		CurZoom:     opts.MinZoom,
		StartCol:    -1,
		opts:        opts,
		assembler:   a,
		tracker:     tr,
		workers:     make(chan struct{}, opts.Workers),
		abort:       make(chan struct{}),
		pause:       make(chan struct{}),
		play:        make(chan struct{}),
	}
	if id != "" {
		task.ID = id
		if cz, cx := tr.Cursor(id); cz != -1 && cx != -1 {
			task.MinZoom = cz
			task.StartCol = cx
		}
	}
	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		task.Total += GetTileCount(&opts.Bounds, z)
	}
	if opts.Format == mbtiles.FormatMBTiles || opts.Format == mbtiles.FormatMysql {
		out, err := mbtiles.Create(opts.Format, opts.Conn, opts.Directory, task.Meta(), id != "")
		if err != nil {
			return nil, err
		}
		task.out = out
	}
	return task, nil
}

//Meta 输出库元数据
func (task *Task) Meta() mbtiles.Meta {
	return mbtiles.Meta{
		ID:          task.ID,
		Name:        task.Name,
		Description: task.Description,
		Format:      "pbf",
		Bounds:      task.opts.Bounds.Bound(),
		MinZoom:     task.opts.MinZoom,
		MaxZoom:     task.opts.MaxZoom,
	}
}

//State 当前状态
func (task *Task) State() State {
	return State(task.signal.Load())
}

//Failures 本次运行失败的瓦片数
func (task *Task) Failures() int64 {
	return task.failures.Load()
}

//Output 输出库,文件输出时为nil
func (task *Task) Output() *mbtiles.DB {
	return task.out
}

//Abort 取消任务
func (task *Task) Abort() {
	task.abortOnce.Do(func() {
		task.signal.Store(int32(Aborting))
		close(task.abort)
	})
}

func (task *Task) running() <-chan struct{} {
	task.mu.Lock()
	defer task.mu.Unlock()
	if task.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return task.done
}

//Pause 暂停派发瓦片,任务未运行时直接返回
func (task *Task) Pause() {
	select {
	case task.pause <- struct{}{}:
		task.signal.Store(int32(Pause))
	case <-task.running():
	}
}

//Play 恢复
func (task *Task) Play() {
	select {
	case task.play <- struct{}{}:
		task.signal.Store(int32(Running))
	case <-task.running():
	}
}

//Close 关闭输出库
func (task *Task) Close() error {
	if task.out == nil {
		return nil
	}
	return task.out.Close()
}

func (task *Task) aborted() bool {
	select {
	case <-task.abort:
		return true
	default:
		return false
	}
}

func (task *Task) start() {
	if !task.aborted() {
		task.signal.Store(int32(Running))
	}
	task.failures.Store(0)
	task.savingpipe = make(chan mbtiles.Tile, task.opts.SavePipe)
	task.saved = make(chan struct{})
	task.mu.Lock()
	task.done = make(chan struct{})
	task.mu.Unlock()
	go task.savePipe()
}

func (task *Task) finish() {
	if !task.aborted() {
		task.signal.Store(int32(Ending))
	}
	task.wg.Wait()
	close(task.savingpipe)
	<-task.saved
	task.signal.Store(int32(Terminated))
	task.mu.Lock()
	close(task.done)
	task.done = nil
	task.mu.Unlock()
}

//savePipe 保存瓦片管道
func (task *Task) savePipe() {
	defer close(task.saved)
	var batch []mbtiles.Tile
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := task.out.SaveTiles(batch); err != nil {
			task.saveFailed(batch)
			log.Errorf("save tile to %s db error ~ %s", task.opts.Format, err)
		}
		batch = nil
	}
	for tile := range task.savingpipe {
		batch = append(batch, tile)
		if len(batch) == task.opts.SavePipe {
			flush()
		}
	}
	n := len(batch)
	flush()
	log.Infof("save batch complete count %d", n)
}

func (task *Task) saveFailed(batch []mbtiles.Tile) {
	for _, tile := range batch {
		task.fail(maptile.New(tile.X, tile.Y, maptile.Zoom(tile.Z)), tracker.ReasonSave)
	}
}

func (task *Task) fail(t maptile.Tile, res string) {
	if res != tracker.ReasonNil {
		task.failures.Add(1)
	}
	err := task.tracker.Fail(task.ID, tracker.ErrTile{X: int(t.X), Y: int(t.Y), Z: int(t.Z), Res: res})
	if err != nil {
		log.Errorf("record %s failure error ~ %s", ToString(t), err)
	}
}

func (task *Task) resolve(t maptile.Tile) {
	if err := task.tracker.Resolve(task.ID, int(t.Z), int(t.X), int(t.Y)); err != nil {
		log.Warnf("clean %s failure error ~ %s", ToString(t), err)
	}
}

//tileWorker 合并单个瓦片并送入保存管道
func (task *Task) tileWorker(ctx context.Context, t maptile.Tile, isRetry bool) {
	defer func() {
		task.wg.Done()
		<-task.workers
	}()
	vt, err := task.assembler.Assemble(ctx, t)
	if err != nil {
		task.fail(t, err.Error())
		log.Errorf("composite %s error, details: %s ~", ToString(t), err)
		return
	}
	data := vt.GetData()
	if len(data) == 0 {
		if isRetry {
			task.resolve(t)
		}
		task.fail(t, tracker.ReasonNil)
		return
	}
	if task.opts.Gzip {
		if data, err = mbtiles.Gzip(data); err != nil {
			task.fail(t, err.Error())
			return
		}
	}
	tile := mbtiles.Tile{Z: uint32(t.Z), X: t.X, Y: t.Y, Data: data}
	if task.out != nil {
		if task.State() < Aborting {
			task.savingpipe <- tile
		}
	} else if err := mbtiles.SaveToFiles(tile, task.opts.Directory, "pbf"); err != nil {
		task.fail(t, err.Error())
		log.Errorf("create %s tile file error ~ %s", ToString(t), err)
		return
	}
	if isRetry {
		task.resolve(t)
	}
}

func (task *Task) newBar(total int, prefix string) *pb.ProgressBar {
	bar := pb.New(total)
	bar.Set("prefix", prefix)
	if task.opts.Progress == nil {
		bar.SetWriter(io.Discard)
	} else {
		bar.SetWriter(task.opts.Progress)
	}
	return bar.Start()
}

//dispatch 派发瓦片,返回false表示任务被取消
func (task *Task) dispatch(ctx context.Context, t maptile.Tile, isRetry bool, bar *pb.ProgressBar) bool {
	if task.aborted() || ctx.Err() != nil {
		return false
	}
	select {
	case task.workers <- struct{}{}:
		bar.Increment()
		task.wg.Add(1)
		go task.tileWorker(ctx, t, isRetry)
		return true
	case <-task.abort:
	case <-ctx.Done():
	case <-task.pause:
		log.Infof("task %s suspended.", task.ID)
		select {
		case <-task.play:
			log.Infof("task %s go on.", task.ID)
			return task.dispatch(ctx, t, isRetry, bar)
		case <-task.abort:
		case <-ctx.Done():
		}
	}
	log.Infof("task %s got canceled.", task.ID)
	return false
}

//compositeZoom 合并指定层级
func (task *Task) compositeZoom(ctx context.Context, zoom int) bool {
	bar := task.newBar(GetTileCount(&task.opts.Bounds, zoom), fmt.Sprintf("Zoom %d : ", zoom))
	tileList := make(chan maptile.Tile)
	stop := make(chan struct{})
	go GenerateTiles(&GenerateTilesOptions{
		Bounds:   &task.opts.Bounds,
		Zoom:     zoom,
		Consumer: tileList,
		Stop:     stop,
	})
	ok := true
	for tile := range tileList {
		if task.StartCol != -1 && zoom == task.MinZoom && int(tile.X) < task.StartCol {
			bar.Increment()
			continue
		}
		if task.CurCol != int(tile.X) {
			task.CurCol = int(tile.X)
			if err := task.tracker.SaveCursor(task.ID, task.CurZoom, task.CurCol); err != nil {
				log.Warnf("save cursor error ~ %s", err)
			}
		}
		if !task.dispatch(ctx, tile, false, bar) {
			ok = false
			close(stop)
			for range tileList {
			}
			break
		}
	}
	task.wg.Wait()
	bar.Finish()
	log.Infof("Task %s zoom %d finished ~", task.ID, zoom)
	return ok
}

//Run 按层级合并范围内的全部瓦片
func (task *Task) Run(ctx context.Context) error {
	start := time.Now()
	task.start()
	for z := task.MinZoom; z <= task.MaxZoom; z++ {
		task.CurZoom = z
		task.CurCol = -1
		if !task.compositeZoom(ctx, z) {
			break
		}
	}
	task.finish()
	if err := ctx.Err(); err != nil {
		return err
	}
	if task.aborted() {
		return errors.New("task aborted")
	}
	if task.CurZoom == task.MaxZoom {
		_ = task.tracker.SaveCursor(task.ID, task.MaxZoom, 1<<task.MaxZoom)
	}
	log.Infof("task %s finished in %.3fs, %d failures ~", task.ID, time.Since(start).Seconds(), task.Failures())
	return nil
}

//Retry 重新合并失败列表中的瓦片
func (task *Task) Retry(ctx context.Context) error {
	list, err := task.tracker.Failed(task.ID)
	if err != nil {
		return err
	}
	task.start()
	bar := task.newBar(len(list), "Retry : ")
	for _, et := range list {
		if et.Z < 0 || et.Z > 32 || et.X < 0 || et.Y < 0 {
			continue
		}
		if !task.dispatch(ctx, maptile.New(uint32(et.X), uint32(et.Y), maptile.Zoom(et.Z)), true, bar) {
			break
		}
	}
	task.wg.Wait()
	bar.Finish()
	task.finish()
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Infof("task %s retried %d tiles, %d failures ~", task.ID, len(list), task.Failures())
	return nil
}
