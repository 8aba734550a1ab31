package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/sjon/camera"
	"github.com/aukilabs/sjon/frustum"
	"github.com/aukilabs/sjon/models"
	"github.com/aukilabs/sjon/navindex"
	"github.com/aukilabs/sjon/streaming"
	"github.com/aukilabs/sjon/visibility"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultVisibilityInterval is the minimum time between two dynamic
// visibility passes.
const DefaultVisibilityInterval = 100 * time.Millisecond

// TileVisibility is a visible tile of a frame.
type TileVisibility struct {
	Tile  int
	Lod   int
	Class frustum.Classification

	// Indices of the visible entities of the LOD. Only valid during the
	// frame handler call.
	Nodes []uint32
}

// Frame is what a frame produced. Frames are passed to frame handlers and
// must not be retained after the handler returns.
type Frame struct {
	Number   uint64
	Elapsed  time.Duration
	Mode     Mode
	Progress streaming.Progress
	Ready    bool
	Camera   mgl32.Vec3

	// Index of the occlusion record used, -1 in dynamic mode.
	Record int

	Tiles []TileVisibility
}

// Options configure an Engine.
type Options struct {
	Index     *navindex.Index
	Occlusion *navindex.Occlusion

	// Loads the index geometry. When nil, the index is used as is.
	Loader *streaming.Loader

	Selector *visibility.Selector
	Resolver *visibility.Resolver
	Camera   camera.Source
	Mode     Mode

	// Minimum time between dynamic visibility passes. Defaults to
	// DefaultVisibilityInterval.
	VisibilityInterval time.Duration

	// When false, the dynamic visibility pass runs every frame.
	Throttle bool
}

// Engine runs frames: it steps the streaming loader until the scene is
// loaded, then computes the visibility set of the current camera and hands
// it to the frame handlers.
//
// Frame is not safe for concurrent use. Ready, Snapshot and HandleFrame
// are.
type Engine struct {
	opts Options

	set            *visibility.Set
	tiles          []TileVisibility
	frameNumber    uint64
	lastVisibility time.Duration
	computed       bool
	record         int
	stats          navindex.Stats

	ready atomic.Bool

	frameHandlerIDs models.IDGenerator
	frameHandlers   map[uint32]func(Frame)
	frameMutex      sync.RWMutex

	snapshotMutex sync.RWMutex
	snapshot      Snapshot
}

func New(opts Options) *Engine {
	if opts.VisibilityInterval <= 0 {
		opts.VisibilityInterval = DefaultVisibilityInterval
	}

	if opts.Selector == nil {
		opts.Selector = visibility.NewSelector(nil)
	}

	if opts.Resolver == nil {
		opts.Resolver = visibility.NewResolver(opts.Selector.Thresholds)
	}

	if opts.Occlusion == nil {
		opts.Occlusion = &navindex.Occlusion{}
	}

	e := &Engine{
		opts:          opts,
		set:           visibility.NewSet(len(opts.Index.Tiles)),
		tiles:         make([]TileVisibility, 0, len(opts.Index.Tiles)),
		record:        -1,
		stats:         opts.Index.Stats(),
		frameHandlers: make(map[uint32]func(Frame)),
	}

	if opts.Loader == nil {
		e.ready.Store(true)
	}
	return e
}

// Ready reports whether the scene is loaded.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Mode returns the visibility mode.
func (e *Engine) Mode() Mode {
	return e.opts.Mode
}

// HandleFrame registers a function called with every frame. Handlers run
// on the frame goroutine and must not block.
func (e *Engine) HandleFrame(h func(Frame)) (cancel func()) {
	e.frameMutex.Lock()
	defer e.frameMutex.Unlock()

	id := e.frameHandlerIDs.New()
	e.frameHandlers[id] = h
	instrumentFrameHandlers(len(e.frameHandlers))

	return func() {
		e.frameMutex.Lock()
		defer e.frameMutex.Unlock()

		if _, ok := e.frameHandlers[id]; !ok {
			return
		}

		delete(e.frameHandlers, id)
		e.frameHandlerIDs.Release(id)
		instrumentFrameHandlers(len(e.frameHandlers))
	}
}

// Run produces a frame every frameDuration until ctx is done.
func (e *Engine) Run(ctx context.Context, frameDuration time.Duration) error {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	logs.WithTag("mode", e.opts.Mode.String()).
		WithTag("frame_duration", frameDuration.String()).
		WithTag("visibility_interval", e.opts.VisibilityInterval.String()).
		Info("starting frame loop")

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			logs.WithTag("frames", e.frameNumber).Info("stopping frame loop")
			return ctx.Err()

		case now := <-ticker.C:
			e.Frame(now.Sub(start))
		}
	}
}

// Frame runs one frame at the given time since start.
func (e *Engine) Frame(elapsed time.Duration) Frame {
	start := time.Now()
	defer instrumentFrame(start)

	e.frameNumber++
	f := Frame{
		Number:  e.frameNumber,
		Elapsed: elapsed,
		Mode:    e.opts.Mode,
		Record:  -1,
	}

	if !e.Ready() {
		progress, done := e.opts.Loader.Step()
		e.stats = e.opts.Index.Stats()
		f.Progress = progress

		if !done {
			e.publish(f)
			return f
		}

		e.ready.Store(true)
	}

	if e.opts.Loader != nil {
		f.Progress = e.opts.Loader.Progress()
	}
	f.Ready = true

	cam := e.opts.Camera.State(elapsed)
	f.Camera = cam.Position

	planes := frustum.Extract(cam.CullViewProjection)

	switch e.opts.Mode {
	case Occlusion:
		e.record = e.opts.Resolver.Resolve(e.opts.Index, e.opts.Occlusion, planes, cam.Position, e.set)
		f.Record = e.record

	default:
		if !e.opts.Throttle || !e.computed || elapsed-e.lastVisibility > e.opts.VisibilityInterval {
			e.opts.Selector.Update(e.opts.Index, planes, cam.Ground(), e.set)
			e.lastVisibility = elapsed
			e.computed = true
		}
	}

	e.tiles = e.tiles[:0]
	for _, entry := range e.set.Entries() {
		e.tiles = append(e.tiles, TileVisibility{
			Tile:  entry.Tile,
			Lod:   entry.Lod,
			Class: entry.Class,
			Nodes: e.opts.Index.Tiles[entry.Tile].Lods[entry.Lod].VisibleNodes(),
		})
	}
	f.Tiles = e.tiles

	e.publish(f)
	return f
}

func (e *Engine) publish(f Frame) {
	e.frameMutex.RLock()
	for _, h := range e.frameHandlers {
		h(f)
	}
	e.frameMutex.RUnlock()

	s := newSnapshot(f, e.stats)

	e.snapshotMutex.Lock()
	e.snapshot = s
	e.snapshotMutex.Unlock()
}
