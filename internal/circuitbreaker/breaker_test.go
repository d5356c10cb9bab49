package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
)

var _ = Describe("CircuitBreaker", func() {
	var cb *circuitbreaker.CircuitBreaker

	newBreaker := func(cfg circuitbreaker.TargetConfig) *circuitbreaker.CircuitBreaker {
		return circuitbreaker.NewCircuitBreaker(cfg, nil)
	}

	Describe("NewCircuitBreaker", func() {
		It("should create a circuit breaker in closed state", func() {
			cb = newBreaker(circuitbreaker.DefaultTargetConfig())
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.ShouldAllow()).To(BeTrue())
		})
	})

	Describe("DefaultTargetConfig", func() {
		It("should match the documented defaults", func() {
			cfg := circuitbreaker.DefaultTargetConfig()
			Expect(cfg.FailureThreshold).To(Equal(uint32(5)))
			Expect(cfg.SuccessThreshold).To(Equal(uint32(3)))
			Expect(cfg.ResetTimeout).To(Equal(30 * time.Second))
			Expect(cfg.HalfOpenMaxCalls).To(Equal(uint32(3)))
			Expect(cfg.CallTimeout).To(BeZero())
		})
	})

	Describe("State transitions", func() {
		BeforeEach(func() {
			cb = newBreaker(circuitbreaker.TargetConfig{
				FailureThreshold: 3,
				SuccessThreshold: 2,
				ResetTimeout:     100 * time.Millisecond,
				HalfOpenMaxCalls: 2,
			})
		})

		Context("when in closed state", func() {
			It("should allow requests", func() {
				Expect(cb.ShouldAllow()).To(BeTrue())
			})

			It("should remain closed after failures below threshold", func() {
				cb.RecordFailure()
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.FailureCount()).To(Equal(uint32(2)))
				Expect(cb.ShouldAllow()).To(BeTrue())
			})

			It("should transition to open after reaching failure threshold", func() {
				cb.RecordFailure()
				cb.RecordFailure()
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should reset failure count on opening", func() {
				cb.RecordFailure()
				cb.RecordFailure()
				cb.RecordFailure()
				Expect(cb.FailureCount()).To(Equal(uint32(0)))
			})

			It("should never change state on success", func() {
				cb.RecordFailure()
				cb.RecordFailure()
				cb.RecordSuccess()
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.FailureCount()).To(Equal(uint32(0)))

				// The streak restarted, so two more failures stay closed.
				cb.RecordFailure()
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			})
		})

		Context("when in open state", func() {
			BeforeEach(func() {
				cb.RecordFailure()
				cb.RecordFailure()
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should reject requests before the reset timeout", func() {
				Expect(cb.ShouldAllow()).To(BeFalse())
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should transition to half-open after the reset timeout", func() {
				time.Sleep(150 * time.Millisecond)
				Expect(cb.ShouldAllow()).To(BeTrue())
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should remain open shortly before the reset timeout expires", func() {
				time.Sleep(20 * time.Millisecond)
				Expect(cb.ShouldAllow()).To(BeFalse())
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should ignore successes", func() {
				cb.RecordSuccess()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should extend the open window when a failure is recorded", func() {
				time.Sleep(60 * time.Millisecond)
				// A manual caller records another failure mid-window.
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

				// 60ms later the original window would have elapsed,
				// but the refreshed timestamp keeps the circuit open.
				time.Sleep(60 * time.Millisecond)
				Expect(cb.ShouldAllow()).To(BeFalse())

				time.Sleep(60 * time.Millisecond)
				Expect(cb.ShouldAllow()).To(BeTrue())
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})
		})

		Context("when in half-open state", func() {
			BeforeEach(func() {
				cb.RecordFailure()
				cb.RecordFailure()
				cb.RecordFailure()
				time.Sleep(150 * time.Millisecond)
				Expect(cb.ShouldAllow()).To(BeTrue()) // first probe
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should allow probes up to the half-open limit", func() {
				Expect(cb.ShouldAllow()).To(BeTrue()) // second probe
				Expect(cb.ShouldAllow()).To(BeFalse())
				Expect(cb.ShouldAllow()).To(BeFalse())
			})

			It("should close after reaching the success threshold", func() {
				cb.RecordSuccess()
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
				Expect(cb.SuccessCount()).To(Equal(uint32(1)))

				cb.RecordSuccess()
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.SuccessCount()).To(Equal(uint32(0)))
			})

			It("should reopen on any single failure regardless of successes", func() {
				cb.RecordSuccess()
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should restore the probe budget after reopening and probing again", func() {
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

				time.Sleep(150 * time.Millisecond)
				Expect(cb.ShouldAllow()).To(BeTrue())
				Expect(cb.ShouldAllow()).To(BeTrue())
				Expect(cb.ShouldAllow()).To(BeFalse())
			})
		})
	})

	Describe("Half-open probe budget", func() {
		It("should admit exactly half_open_max_calls probes in one period", func() {
			cb = newBreaker(circuitbreaker.TargetConfig{
				FailureThreshold: 1,
				SuccessThreshold: 2,
				ResetTimeout:     0, // immediate transition
				HalfOpenMaxCalls: 2,
			})

			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			// First call triggers half-open and counts as probe #1.
			Expect(cb.ShouldAllow()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))

			// Probe #2 is still under the limit, probe #3 is not.
			Expect(cb.ShouldAllow()).To(BeTrue())
			Expect(cb.ShouldAllow()).To(BeFalse())
		})

		It("should not refund the budget when probes complete", func() {
			cb = newBreaker(circuitbreaker.TargetConfig{
				FailureThreshold: 1,
				SuccessThreshold: 5,
				ResetTimeout:     0,
				HalfOpenMaxCalls: 2,
			})

			cb.RecordFailure()
			Expect(cb.ShouldAllow()).To(BeTrue())
			Expect(cb.ShouldAllow()).To(BeTrue())

			// Completed probes do not free up admission slots.
			cb.RecordSuccess()
			Expect(cb.ShouldAllow()).To(BeFalse())
		})
	})

	Describe("Full recovery cycle", func() {
		It("should cycle closed -> open -> half-open -> closed", func() {
			cb = newBreaker(circuitbreaker.TargetConfig{
				FailureThreshold: 3,
				SuccessThreshold: 2,
				ResetTimeout:     100 * time.Millisecond,
				HalfOpenMaxCalls: 2,
			})

			cb.RecordFailure()
			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb.FailureCount()).To(Equal(uint32(0)))

			Expect(cb.ShouldAllow()).To(BeFalse())

			time.Sleep(120 * time.Millisecond)
			Expect(cb.ShouldAllow()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))

			cb.RecordSuccess()
			cb.RecordSuccess()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Concurrent use", func() {
		It("should tolerate duplicate transition execution under load", func() {
			cb = newBreaker(circuitbreaker.TargetConfig{
				FailureThreshold: 5,
				SuccessThreshold: 3,
				ResetTimeout:     10 * time.Millisecond,
				HalfOpenMaxCalls: 3,
			})

			const goroutines = 100

			// Many goroutines cross the failure threshold at once; each
			// may redundantly execute the closed->open transition.
			var wg sync.WaitGroup
			wg.Add(goroutines)
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.RecordFailure()
				}()
			}
			wg.Wait()

			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb.FailureCount()).To(Equal(uint32(0)))

			// After the window elapses, many goroutines race the
			// open->half-open transition.
			time.Sleep(20 * time.Millisecond)

			wg.Add(goroutines)
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.ShouldAllow()
				}()
			}
			wg.Wait()

			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})

		It("should keep state valid under mixed concurrent operations", func() {
			cb = newBreaker(circuitbreaker.DefaultTargetConfig())

			const goroutines = 50

			var wg sync.WaitGroup
			wg.Add(goroutines * 3)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.RecordFailure()
				}()
				go func() {
					defer wg.Done()
					cb.RecordSuccess()
				}()
				go func() {
					defer wg.Done()
					cb.ShouldAllow()
				}()
			}
			wg.Wait()

			Expect(cb.State()).To(BeElementOf(
				circuitbreaker.StateClosed,
				circuitbreaker.StateOpen,
				circuitbreaker.StateHalfOpen,
			))
		})
	})

	Describe("State.String", func() {
		It("should return the human-readable state name", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("closed"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("open"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("half-open"))
		})
	})
})
