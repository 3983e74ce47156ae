package store

import (
	"sync"

	"github.com/iWorld-y/news_crawler/internal/model"
)

// UpsertStats 一次 Upsert 的新增和替换数量
type UpsertStats struct {
	Added    int `json:"added"`
	Replaced int `json:"replaced"`
}

// Store 跨周期累积的文章数据集，URL 唯一
type Store struct {
	mu      sync.Mutex
	records []model.ArticleRecord
	index   map[string]int
}

// New 创建空数据集
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Upsert 按 URL 合并一批记录。URL 冲突时以后写入的为准并保留原位置，批内重复同样如此
func (s *Store) Upsert(records []model.ArticleRecord) UpsertStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats UpsertStats
	for _, rec := range records {
		if i, ok := s.index[rec.URL]; ok {
			s.records[i] = rec
			stats.Replaced++
			continue
		}
		s.index[rec.URL] = len(s.records)
		s.records = append(s.records, rec)
		stats.Added++
	}
	return stats
}

// Snapshot 当前数据集的只读副本
func (s *Store) Snapshot() Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]model.ArticleRecord, len(s.records))
	copy(records, s.records)
	index := make(map[string]int, len(s.index))
	for k, v := range s.index {
		index[k] = v
	}
	return Dataset{records: records, index: index}
}

// Len 记录数
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Reset 清空整个数据集
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[string]int)
}

// Dataset 某一时刻的数据集快照，不随 Store 变化
type Dataset struct {
	records []model.ArticleRecord
	index   map[string]int
}

// NewDataset 由记录列表构造快照，URL 重复时后者覆盖前者
func NewDataset(records []model.ArticleRecord) Dataset {
	s := New()
	s.Upsert(records)
	return Dataset{records: s.records, index: s.index}
}

// Records 按插入顺序返回记录，返回的切片可以随意修改
func (d Dataset) Records() []model.ArticleRecord {
	out := make([]model.ArticleRecord, len(d.records))
	copy(out, d.records)
	return out
}

func (d Dataset) Len() int {
	return len(d.records)
}

// Get 按 URL 查找
func (d Dataset) Get(url string) (model.ArticleRecord, bool) {
	i, ok := d.index[url]
	if !ok {
		return model.ArticleRecord{}, false
	}
	return d.records[i], true
}
