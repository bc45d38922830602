package vulkan

import "sync"

type LockGroup string

const (
	QueueManagement    LockGroup = "queue_management"
	PipelineManagement LockGroup = "pipeline_management"
	ResourceManagement LockGroup = "resource_management"
)

/**
 * @brief Named mutexes serializing access to shared device objects: the
 * queue with its submit fence, the pipeline caches and the handle tables.
 */
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

// Get or create the mutex of a group
func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.locks[group]; !exists {
		vs.locks[group] = &sync.Mutex{}
	}
	return vs.locks[group]
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}
