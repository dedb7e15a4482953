package graphdb

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// RecordManager stores one serialized vertex or edge per page
type RecordManager struct {
	bufferPool *BufferPool
	pageSize   int
}

// NewRecordManager initializes a new RecordManager
func NewRecordManager(bufferPool *BufferPool, pageSize int) *RecordManager {
	logrus.WithFields(logrus.Fields{
		"component": "RecordManager",
		"page_size": pageSize,
	}).Info("Initializing RecordManager")
	return &RecordManager{
		bufferPool: bufferPool,
		pageSize:   pageSize,
	}
}

// WriteRecord serializes a Vertex or Edge onto a freshly allocated page.
// Records are never rewritten in place; the newest page for an id wins.
func (rm *RecordManager) WriteRecord(record interface{}) (int, error) {
	log := logrus.WithField("component", "RecordManager")
	data, err := Serialize(record)
	if err != nil {
		log.WithError(err).Error("Failed to serialize record")
		return -1, fmt.Errorf("failed to serialize record: %w", err)
	}

	if len(data) > rm.pageSize {
		log.WithField("data_size", len(data)).Error("Record too large for page")
		return -1, fmt.Errorf("record size %d exceeds page size %d", len(data), rm.pageSize)
	}

	pageID, err := rm.bufferPool.storage.AllocatePage()
	if err != nil {
		log.WithError(err).Error("Failed to allocate page")
		return -1, fmt.Errorf("failed to allocate page: %w", err)
	}

	padded := make([]byte, rm.pageSize)
	copy(padded, data)

	if err := rm.bufferPool.WritePage(pageID, padded); err != nil {
		log.WithError(err).WithField("page_id", pageID).Error("Failed to write record")
		return -1, fmt.Errorf("failed to write record to page %d: %w", pageID, err)
	}
	return pageID, nil
}

// ReadRecord reads and deserializes a record from a page
func (rm *RecordManager) ReadRecord(pageID int, record interface{}) error {
	data, err := rm.bufferPool.GetPage(pageID)
	if err != nil {
		return fmt.Errorf("failed to read page %d: %w", pageID, err)
	}
	if err := Deserialize(data, record); err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "RecordManager",
			"page_id":   pageID,
		}).WithError(err).Error("Failed to deserialize record")
		return fmt.Errorf("failed to deserialize record from page %d: %w", pageID, err)
	}
	return nil
}

// Scan visits every non-empty page in file order. Used to rebuild the
// in-memory indexes when an existing file is opened.
func (rm *RecordManager) Scan(visit func(pageID int, kind RecordKind, data []byte) error) error {
	storage := rm.bufferPool.storage
	for pageID := 1; pageID < storage.NumPages(); pageID++ {
		data, err := storage.ReadPage(pageID)
		if err != nil {
			return fmt.Errorf("failed to scan page %d: %w", pageID, err)
		}
		kind, err := PeekKind(data)
		if err != nil {
			return fmt.Errorf("failed to scan page %d: %w", pageID, err)
		}
		if kind == RecordEmpty {
			continue
		}
		if err := visit(pageID, kind, data); err != nil {
			return err
		}
	}
	return nil
}
