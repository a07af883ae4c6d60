// 通过channel发送任务的协程池
// worker数量固定，任务为闭包，ctx取消后停止接收新任务
package routingpool

import (
	"context"
	"sync"
)

type Task func(ctx context.Context)

type TaskPool struct {
	wg    sync.WaitGroup
	ctx   context.Context
	size  uint32
	tasks chan Task
}

func NewTaskPool(ctx context.Context, size uint32, queueSize uint32) *TaskPool {
	return &TaskPool{
		ctx:   ctx,
		size:  size,
		tasks: make(chan Task, queueSize),
	}
}

func (p *TaskPool) Start() {
	var i uint32
	for ; i != p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				if p.ctx.Err() != nil {
					continue // 取消后清空队列但不执行
				}
				task(p.ctx)
			}
		}()
	}
}

// Submit 投递任务；ctx已取消时拒绝并返回false
func (p *TaskPool) Submit(t Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- t:
		return true
	}
}

// Wait 关闭任务队列并等待所有worker退出
func (p *TaskPool) Wait() {
	close(p.tasks)
	p.wg.Wait()
}
