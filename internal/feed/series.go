package feed

import (
	"sync"

	"fargoat/internal/models"
)

// DefaultSeriesSize is the number of chart points kept for new viewers
const DefaultSeriesSize = 30

// Series keeps the most recent chart points published on a channel
type Series struct {
	mu     sync.RWMutex
	size   int
	points []models.ChartData
	sub    *Subscription
}

// NewSeries subscribes to key and keeps the last size chart points
func NewSeries(h *Hub, key string, size int) *Series {
	if size <= 0 {
		size = DefaultSeriesSize
	}
	s := &Series{size: size}
	s.sub = h.Subscribe(key, s.record)
	return s
}

func (s *Series) record(value any) {
	var point models.ChartData
	switch v := value.(type) {
	case models.ChartData:
		point = v
	case *models.ChartData:
		if v == nil {
			return
		}
		point = *v
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, point)
	if len(s.points) > s.size {
		s.points = append([]models.ChartData(nil), s.points[len(s.points)-s.size:]...)
	}
}

// Points returns a copy of the buffered points, oldest first
func (s *Series) Points() []models.ChartData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChartData(nil), s.points...)
}

// Close stops recording
func (s *Series) Close() {
	s.sub.Unsubscribe()
}
