package jobs

import (
	"sync"
	"time"

	"github.com/bluele/gcache"
)

const retiredCapacity = 1024

// registry tracks running jobs in a plain map and parks terminal ones in
// a TTL cache, after which they are garbage collected. The lock only
// guards registration, lookup and retirement, never job execution.
type registry struct {
	lock      sync.Mutex
	active    map[string]*Job
	retired   gcache.Cache
	retention time.Duration
}

func newRegistry(retention time.Duration) *registry {
	return &registry{
		active:    make(map[string]*Job),
		retired:   gcache.New(retiredCapacity).LRU().Build(),
		retention: retention,
	}
}

func (r *registry) add(j *Job) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.active[j.ID] = j
}

func (r *registry) get(id string) (*Job, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if j, ok := r.active[id]; ok {
		return j, nil
	}
	if cached, err := r.retired.Get(id); err == nil {
		return cached.(*Job), nil
	}
	return nil, ErrJobNotFound
}

// retire moves a terminal job from the active set into the TTL cache.
func (r *registry) retire(j *Job) {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.active, j.ID)
	_ = r.retired.SetWithExpire(j.ID, j, r.retention)
}
