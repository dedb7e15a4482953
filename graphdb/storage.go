package graphdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	headerMagic   = "IQG\000"
	formatVersion = uint32(2)
)

// StorageManager owns the page file backing the inventory graph.
// Page 0 holds the header: magic, format version, page size, page count.
type StorageManager struct {
	file     *os.File
	pageSize int
	numPages int
}

// NewStorageManager opens or creates the page file
func NewStorageManager(filename string, pageSize int) (*StorageManager, error) {
	log := logrus.WithFields(logrus.Fields{
		"component": "StorageManager",
		"filename":  filename,
		"page_size": pageSize,
	})
	log.Info("Opening page file")

	if pageSize < 64 {
		return nil, fmt.Errorf("page size %d too small", pageSize)
	}

	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		log.WithError(err).Error("Failed to open storage file")
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		log.WithError(err).Error("Failed to stat storage file")
		file.Close()
		return nil, err
	}
	size := info.Size()

	sm := &StorageManager{file: file, pageSize: pageSize}
	if size == 0 {
		log.Debug("Initializing new page file with header")
		sm.numPages = 1
		if err := sm.writeHeader(); err != nil {
			log.WithError(err).Error("Failed to write header")
			file.Close()
			return nil, err
		}
		return sm, nil
	}

	if size%int64(pageSize) != 0 {
		log.WithField("size", size).Error("File size not aligned with page size")
		file.Close()
		return nil, fmt.Errorf("file size %d not aligned with page size %d: %w", size, pageSize, os.ErrInvalid)
	}
	if err := sm.checkHeader(); err != nil {
		log.WithError(err).Error("Invalid page file header")
		file.Close()
		return nil, err
	}
	sm.numPages = int(size / int64(pageSize))
	log.WithField("num_pages", sm.numPages).Info("Page file opened")
	return sm, nil
}

func (sm *StorageManager) writeHeader() error {
	header := make([]byte, sm.pageSize)
	copy(header[0:4], headerMagic)
	binary.LittleEndian.PutUint32(header[4:8], formatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(sm.pageSize))
	binary.LittleEndian.PutUint32(header[12:16], uint32(sm.numPages))
	_, err := sm.file.WriteAt(header, 0)
	return err
}

func (sm *StorageManager) checkHeader() error {
	header := make([]byte, 16)
	if _, err := sm.file.ReadAt(header, 0); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if !bytes.Equal(header[0:4], []byte(headerMagic)) {
		return fmt.Errorf("not an inventory graph file: %w", os.ErrInvalid)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != formatVersion {
		return fmt.Errorf("unsupported format version %d", v)
	}
	if ps := int(binary.LittleEndian.Uint32(header[8:12])); ps != sm.pageSize {
		return fmt.Errorf("page size mismatch: file uses %d, configured %d", ps, sm.pageSize)
	}
	return nil
}

// NumPages returns the number of pages including the header page
func (sm *StorageManager) NumPages() int {
	return sm.numPages
}

// ReadPage reads a page from disk
func (sm *StorageManager) ReadPage(pageID int) ([]byte, error) {
	if pageID < 1 || pageID >= sm.numPages {
		logrus.WithField("page_id", pageID).Error("Invalid page ID")
		return nil, fmt.Errorf("page %d out of range: %w", pageID, os.ErrInvalid)
	}

	data := make([]byte, sm.pageSize)
	if _, err := sm.file.ReadAt(data, int64(pageID)*int64(sm.pageSize)); err != nil {
		logrus.WithField("page_id", pageID).WithError(err).Error("Failed to read page")
		return nil, err
	}
	return data, nil
}

// WritePage writes a page to disk
func (sm *StorageManager) WritePage(pageID int, data []byte) error {
	if pageID < 1 || pageID >= sm.numPages || len(data) != sm.pageSize {
		logrus.WithField("page_id", pageID).Error("Invalid page ID or data length")
		return fmt.Errorf("page %d write rejected: %w", pageID, os.ErrInvalid)
	}

	if _, err := sm.file.WriteAt(data, int64(pageID)*int64(sm.pageSize)); err != nil {
		logrus.WithField("page_id", pageID).WithError(err).Error("Failed to write page")
		return err
	}
	return nil
}

// AllocatePage appends a zeroed page and updates the header count
func (sm *StorageManager) AllocatePage() (int, error) {
	log := logrus.WithField("component", "StorageManager")
	pageID := sm.numPages
	if _, err := sm.file.WriteAt(make([]byte, sm.pageSize), int64(pageID)*int64(sm.pageSize)); err != nil {
		log.WithError(err).Error("Failed to allocate new page")
		return -1, err
	}
	sm.numPages++

	count := make([]byte, 4)
	binary.LittleEndian.PutUint32(count, uint32(sm.numPages))
	if _, err := sm.file.WriteAt(count, 12); err != nil {
		log.WithError(err).Error("Failed to update header")
		return -1, err
	}
	log.WithField("new_page_id", pageID).Debug("Allocated new page")
	return pageID, nil
}

// Close syncs and closes the storage file
func (sm *StorageManager) Close() error {
	log := logrus.WithField("component", "StorageManager")
	if err := sm.file.Sync(); err != nil {
		log.WithError(err).Error("Failed to sync file")
		return err
	}
	if err := sm.file.Close(); err != nil {
		log.WithError(err).Error("Failed to close file")
		return err
	}
	log.Info("Storage file closed")
	return nil
}
