package ocr

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareTask() *Task {
	return &Task{}
}

func TestTaskRegistry_RegisterAndActiveCount(t *testing.T) {
	r := NewTaskRegistry()
	t1 := newBareTask()
	t2 := newBareTask()
	r.Register(t1)
	r.Register(t2)
	assert.Equal(t, 2, r.ActiveCount())
	runtime.KeepAlive(t1)
	runtime.KeepAlive(t2)
}

func TestTaskRegistry_ScavengeDropsDestroyedTasks(t *testing.T) {
	r := NewTaskRegistry()
	live := newBareTask()
	dead := newBareTask()
	dead.state = TaskDestroyed

	r.Register(live)
	r.Register(dead)
	assert.Equal(t, 2, r.ActiveCount())

	r.Scavenge(10)
	assert.Equal(t, 1, r.ActiveCount())

	snap := r.Snapshot()
	assert.Len(t, snap, 1)
	runtime.KeepAlive(live)
}

func TestTaskRegistry_ScavengeBatchSizeZeroIsNoop(t *testing.T) {
	r := NewTaskRegistry()
	task := newBareTask()
	r.Register(task)
	r.Scavenge(0)
	assert.Equal(t, 1, r.ActiveCount())
	runtime.KeepAlive(task)
}

func TestTaskRegistry_ConcurrentRegisterAndScavenge(t *testing.T) {
	r := NewTaskRegistry()
	const producers = 20
	const perProducer = 50

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < perProducer; j++ {
				task := newBareTask()
				r.Register(task)
			}
		}()
	}

	stop := make(chan struct{})
	var scavengerWG sync.WaitGroup
	scavengerWG.Add(1)
	go func() {
		defer scavengerWG.Done()
		<-start
		for {
			select {
			case <-stop:
				return
			default:
				r.Scavenge(8)
				runtime.Gosched()
			}
		}
	}()

	close(start)
	wg.Wait()
	close(stop)
	scavengerWG.Wait()

	require.GreaterOrEqual(t, r.ActiveCount(), 0)
}
