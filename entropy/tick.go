package entropy

import (
	"context"
	"encoding/binary"
	"time"
)

const (
	tickDuration = 10 * time.Microsecond
	tickBatches  = 64
)

// tickSource samples scheduler jitter: the least significant bit of the
// current nanosecond unixtime after every tick. The busier the host, the
// better the quality, as the scheduler cannot immediately resume the
// goroutine when the timer fires.
type tickSource struct{}

func init() {
	registerSource(&tickSource{})
}

func (s *tickSource) Name() string {
	return "tick"
}

func (s *tickSource) Local() bool {
	return true
}

func (s *tickSource) Fetch(ctx context.Context) ([]byte, error) {
	payload := make([]byte, 0, tickBatches*8)
	var value int64
	var pushes int

	timer := time.NewTimer(tickDuration)
	defer timer.Stop()

	for len(payload) < tickBatches*8 {
		select {
		case <-timer.C:
			value = (value << 1) | (time.Now().UnixNano() % 2)

			pushes++
			if pushes >= 64 {
				var chunk [8]byte
				binary.LittleEndian.PutUint64(chunk[:], uint64(value))
				payload = append(payload, chunk[:]...)
				pushes = 0
			}

			timer.Reset(tickDuration)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return payload, nil
}
