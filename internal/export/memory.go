package export

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps exported reports in process. It backs tests and deployments
// without a spreadsheet.
type Memory struct {
	mu      sync.Mutex
	reports []Report
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Export(_ context.Context, r Report) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return fmt.Sprintf("mem:%d", len(m.reports)), nil
}

// Reports returns every report exported so far.
func (m *Memory) Reports() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Report(nil), m.reports...)
}
