package graphdb

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// BufferPool caches pages in memory with LRU eviction. Writes go straight
// to disk. Safe for concurrent readers.
type BufferPool struct {
	mu       sync.Mutex
	storage  *StorageManager
	capacity int
	pages    map[int][]byte
	lru      *list.List
	lruKeys  map[int]*list.Element

	hits   int64
	misses int64
}

// NewBufferPool initializes a new BufferPool
func NewBufferPool(storage *StorageManager, capacity int) *BufferPool {
	if capacity < 1 {
		capacity = 1
	}
	logrus.WithFields(logrus.Fields{
		"component": "BufferPool",
		"capacity":  capacity,
	}).Info("Initializing BufferPool (write-through)")
	return &BufferPool{
		storage:  storage,
		capacity: capacity,
		pages:    make(map[int][]byte),
		lru:      list.New(),
		lruKeys:  make(map[int]*list.Element),
	}
}

// GetPage retrieves a page, loading from disk if not in cache.
// The returned slice must not be modified.
func (bp *BufferPool) GetPage(pageID int) ([]byte, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if data, ok := bp.pages[pageID]; ok {
		bp.lru.MoveToFront(bp.lruKeys[pageID])
		bp.hits++
		return data, nil
	}
	bp.misses++

	data, err := bp.storage.ReadPage(pageID)
	if err != nil {
		logrus.WithField("page_id", pageID).WithError(err).Error("Failed to read page from storage")
		return nil, err
	}
	if err := bp.admit(pageID, data); err != nil {
		return nil, err
	}
	return data, nil
}

// WritePage writes a page to disk and refreshes the cache
func (bp *BufferPool) WritePage(pageID int, data []byte) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if err := bp.storage.WritePage(pageID, data); err != nil {
		logrus.WithField("page_id", pageID).WithError(err).Error("Failed to write page to storage")
		return err
	}

	if elem, ok := bp.lruKeys[pageID]; ok {
		bp.pages[pageID] = data
		bp.lru.MoveToFront(elem)
		return nil
	}
	return bp.admit(pageID, data)
}

// admit adds a page to the cache, evicting if full. Caller holds mu.
func (bp *BufferPool) admit(pageID int, data []byte) error {
	if len(bp.pages) >= bp.capacity {
		if err := bp.evictPage(); err != nil {
			logrus.WithField("page_id", pageID).WithError(err).Error("Failed to evict page")
			return err
		}
	}
	bp.pages[pageID] = data
	bp.lruKeys[pageID] = bp.lru.PushFront(pageID)
	return nil
}

// evictPage removes the least recently used page. Caller holds mu.
func (bp *BufferPool) evictPage() error {
	if bp.lru.Len() == 0 {
		return fmt.Errorf("buffer pool empty")
	}
	elem := bp.lru.Back()
	pageID := elem.Value.(int)
	bp.lru.Remove(elem)
	delete(bp.pages, pageID)
	delete(bp.lruKeys, pageID)
	logrus.WithField("page_id", pageID).Debug("Evicted page")
	return nil
}

// Stats returns cache hit and miss counts
func (bp *BufferPool) Stats() (hits, misses int64) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.hits, bp.misses
}

// Close drops all cached pages
func (bp *BufferPool) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.pages = make(map[int][]byte)
	bp.lru.Init()
	bp.lruKeys = make(map[int]*list.Element)
	logrus.WithField("component", "BufferPool").Info("BufferPool closed")
	return nil
}
