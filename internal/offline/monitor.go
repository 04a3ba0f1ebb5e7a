package offline

import (
	"log"
	"sync"
)

// Monitor 持有客户端的联网状态并在恢复联网时触发对账。
// 初始状态乐观在线；探测机制由宿主环境提供，这里只消费状态变化。
// 仅在 离线→在线 的跃迁上触发一次 Reconcile，持续在线的重复上报不会反复对账。
type Monitor struct {
	mu         sync.Mutex
	online     bool
	reconciler *Reconciler
	callbacks  []func(online bool)
}

// NewMonitor 构造 Monitor，默认在线
func NewMonitor(reconciler *Reconciler) *Monitor {
	return &Monitor{online: true, reconciler: reconciler}
}

// IsOnline 返回当前联网状态
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange 注册状态变化回调，状态真正翻转时才会被调用
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// SetOnline 更新联网状态。发生 离线→在线 跃迁时执行一次对账并返回报告；
// 其余情况返回 nil 报告。
func (m *Monitor) SetOnline(online bool) (*Report, error) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	callbacks := make([]func(bool), 0, len(m.callbacks))
	if wasOnline != online {
		callbacks = append(callbacks, m.callbacks...)
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(online)
	}

	if wasOnline || !online {
		return nil, nil
	}

	log.Printf("[sync] connectivity restored, reconciling offline buffer")
	return m.reconciler.Reconcile()
}
