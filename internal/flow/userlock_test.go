package flow

import (
	"sync"
	"time"
)

func (s *UnitTestSuite) TestUserLocksSerializeSameUser() {
	l := newUserLocks()
	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("u1")
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	s.Equal(1, maxInside)
	s.Equal(0, l.size())
}

func (s *UnitTestSuite) TestUserLocksIndependentUsers() {
	l := newUserLocks()
	unlockA := l.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("lock on b blocked behind a")
	}
	unlockA()
}
