package models

import (
	"sync"

	"github.com/kamstrup/intmap"
)

// IDGenerator hands out non-zero uint32 ids. Released ids are handed out
// again before new ones, the most recently released first.
type IDGenerator struct {
	mutex    sync.Mutex
	last     uint32
	released []uint32
	free     *intmap.Map[uint32, struct{}]
	live     int
}

// New returns an id that is not in use.
func (g *IDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.live++

	if n := len(g.released); n != 0 {
		id := g.released[n-1]
		g.released = g.released[:n-1]
		g.free.Del(id)
		return id
	}

	g.last++
	return g.last
}

// Release marks id as no longer in use. Ids that were never handed out or
// that are already released are ignored.
func (g *IDGenerator) Release(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.last || g.live == 0 {
		return
	}

	if g.free == nil {
		g.free = intmap.New[uint32, struct{}](16)
	}
	if _, ok := g.free.Get(id); ok {
		return
	}
	g.free.Put(id, struct{}{})

	g.live--
	g.released = append(g.released, id)
}

// Live returns the number of ids in use.
func (g *IDGenerator) Live() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.live
}
