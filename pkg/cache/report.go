package cache

import (
	"github.com/codescope-dev/codescope/pkg/alg/lru"
	"github.com/codescope-dev/codescope/pkg/model"
)

const (
	defaultReportCacheBytes  = 64 * 1024 * 1024
	reportBloomAvgBlobBytes  = 4096
	reportBloomMinElements   = 64
	reportEvictionSampleSize = 5
	reportEvictionBytesPerKB = 1024.0
)

// reportEntry pairs a decoded report with the byte length of the
// ReportBlob it was decoded from, so the cache's byte budget reflects
// the cost of the decode it is saving rather than an arbitrary weight.
type reportEntry struct {
	report *model.Report
	size   int64
}

func reportEntrySize(e reportEntry) int64 { return e.size }

func cloneReportEntry(e reportEntry) reportEntry {
	if e.report == nil {
		return e
	}

	cp := *e.report

	return reportEntry{report: &cp, size: e.size}
}

// reportEvictionCost favors evicting large, rarely-fetched reports over
// small, frequently-polled ones, same shape as the teacher's blob cache
// cost function: accessCount / sizeKB, higher is less evictable.
func reportEvictionCost(accessCount, sizeBytes int64) float64 {
	sizeKB := float64(sizeBytes) / reportEvictionBytesPerKB
	if sizeKB < 1 {
		sizeKB = 1
	}

	return float64(accessCount) / sizeKB
}

func projectIDToBytes(id string) []byte { return []byte(id) }

// ReportCache memoizes decoded model.Report values by project id. A
// completed project's ReportBlob is written once by persist.Mapper and
// never changes afterward, so unlike Status/Result/ListProjects this
// cache needs no TTL or invalidation: once decoded, an entry is valid
// for the project's lifetime and only ever falls out via eviction.
// Bounded by total decoded-report bytes rather than entry count, with a
// Bloom pre-filter on project id and cost-based eviction weighing access
// frequency against size - the same combination of options the teacher's
// internal/cache.LRUBlobCache applies to git blobs, applied here to
// decoded report payloads instead.
type ReportCache struct {
	inner *lru.Cache[string, reportEntry]
}

// NewReportCache creates a report cache bounded to maxBytes of decoded
// report payload; maxBytes <= 0 falls back to defaultReportCacheBytes.
func NewReportCache(maxBytes int64) *ReportCache {
	if maxBytes <= 0 {
		maxBytes = defaultReportCacheBytes
	}

	expectedN := uint(maxBytes / reportBloomAvgBlobBytes)
	if expectedN < reportBloomMinElements {
		expectedN = reportBloomMinElements
	}

	return &ReportCache{
		inner: lru.New(
			lru.WithMaxBytes[string, reportEntry](maxBytes, reportEntrySize),
			lru.WithBloomFilter[string, reportEntry](projectIDToBytes, expectedN),
			lru.WithCostEviction[string, reportEntry](reportEvictionSampleSize, reportEvictionCost),
			lru.WithCloneFunc[string, reportEntry](cloneReportEntry),
		),
	}
}

// Get returns the decoded report cached for projectID, if any.
func (c *ReportCache) Get(projectID string) (*model.Report, bool) {
	entry, ok := c.inner.Get(projectID)
	if !ok {
		return nil, false
	}

	return entry.report, true
}

// Put caches report, decoded from a ReportBlob of blobLen bytes.
func (c *ReportCache) Put(projectID string, report *model.Report, blobLen int) {
	c.inner.Put(projectID, reportEntry{report: report, size: int64(blobLen)})
}
