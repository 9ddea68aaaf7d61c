package market

import (
	"context"
	"errors"
	"sync"
)

// KlineStore 缓存每个 symbol+interval 的 K 线序列。
type KlineStore interface {
	Put(ctx context.Context, symbol, interval string, ks []Candle, max int) error
	Set(ctx context.Context, symbol, interval string, ks []Candle) error
	Get(ctx context.Context, symbol, interval string) ([]Candle, error)
}

type MemoryKlineStore struct {
	mu   sync.RWMutex
	data map[string][]Candle
}

func NewMemoryKlineStore() *MemoryKlineStore {
	return &MemoryKlineStore{data: make(map[string][]Candle)}
}

func key(symbol, interval string) string { return symbol + "@" + interval }

// Put 追加或覆盖尾部 K 线：OpenTime 相同的最后一根视为实时更新，原地替换；
// 超过 max 时丢弃最旧的部分。
func (s *MemoryKlineStore) Put(ctx context.Context, symbol, interval string, ks []Candle, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval 不能为空")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 100
	}
	k := key(symbol, interval)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.data[k]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	s.data[k] = cur
	return nil
}

func (s *MemoryKlineStore) Set(ctx context.Context, symbol, interval string, ks []Candle) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval 不能为空")
	}
	dst := make([]Candle, len(ks))
	copy(dst, ks)
	s.mu.Lock()
	s.data[key(symbol, interval)] = dst
	s.mu.Unlock()
	return nil
}

func (s *MemoryKlineStore) Get(ctx context.Context, symbol, interval string) ([]Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[key(symbol, interval)]
	out := make([]Candle, len(cur))
	copy(out, cur)
	return out, nil
}
