package observability

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetrics_Concurrent_Increments(t *testing.T) {
	req := require.New(t)
	m := NewMetrics(slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrIndexed()
			m.IncrSearchFailures()
		}()
	}
	wg.Wait()

	snapshot := m.Snapshot()
	req.Equal(uint64(50), snapshot.Indexed)
	req.Equal(uint64(50), snapshot.SearchFailures)
	req.Zero(snapshot.PublishFailures)
}

func TestMetrics_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	m := NewMetrics(slog.Default())
	m.SetComponentHealth("broker", "SERVING")

	snapshot := m.Snapshot()
	snapshot.ComponentsHealth["broker"] = "NOT_SERVING"

	req.Equal("SERVING", m.Snapshot().ComponentsHealth["broker"])
}

func TestSampleProcess(t *testing.T) {
	req := require.New(t)

	stats, err := SampleProcess()

	req.NoError(err)
	req.Equal(int32(os.Getpid()), stats.PID)
	req.Positive(stats.Goroutines)
}
