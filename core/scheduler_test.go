package core

import "testing"

func resetScheduler() {
	timerList = nil
	currentTime = 0
}

func TestTimerDispatchOrder(t *testing.T) {
	resetScheduler()

	var fired []int
	mk := func(n int, wake uint32) *Timer {
		timer := &Timer{WakeTime: wake}
		timer.Handler = func(*Timer) uint8 {
			fired = append(fired, n)
			return SF_DONE
		}
		return timer
	}

	// Insert out of order
	ScheduleTimer(mk(3, 300))
	ScheduleTimer(mk(1, 100))
	ScheduleTimer(mk(2, 200))

	SetTime(250)
	ProcessTimers()

	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Errorf("Expected timers 1,2 to fire in order, got %v", fired)
	}

	SetTime(400)
	ProcessTimers()
	if len(fired) != 3 || fired[2] != 3 {
		t.Errorf("Expected timer 3 to fire, got %v", fired)
	}
}

func TestTimerReschedule(t *testing.T) {
	resetScheduler()

	count := 0
	timer := &Timer{WakeTime: 10}
	timer.Handler = func(tm *Timer) uint8 {
		count++
		if count >= 3 {
			return SF_DONE
		}
		tm.WakeTime += 10
		return SF_RESCHEDULE
	}
	ScheduleTimer(timer)

	SetTime(100)
	ProcessTimers()

	if count != 3 {
		t.Errorf("Expected 3 invocations, got %d", count)
	}
	if timerList != nil {
		t.Error("Timer list must be empty after SF_DONE")
	}
}

func TestUnscheduleTimer(t *testing.T) {
	resetScheduler()

	var fired []int
	mk := func(n int, wake uint32) *Timer {
		timer := &Timer{WakeTime: wake}
		timer.Handler = func(*Timer) uint8 {
			fired = append(fired, n)
			return SF_DONE
		}
		return timer
	}

	t1 := mk(1, 100)
	t2 := mk(2, 200)
	t3 := mk(3, 300)
	ScheduleTimer(t1)
	ScheduleTimer(t2)
	ScheduleTimer(t3)

	// Remove from the middle and from the head
	UnscheduleTimer(t2)
	UnscheduleTimer(t1)

	SetTime(500)
	ProcessTimers()

	if len(fired) != 1 || fired[0] != 3 {
		t.Errorf("Expected only timer 3 to fire, got %v", fired)
	}

	// Unscheduling a timer that is not queued must be harmless
	UnscheduleTimer(t1)
}
