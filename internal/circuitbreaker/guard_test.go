package circuitbreaker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/circuit-guard/internal/circuitbreaker"
)

var _ = Describe("Do", func() {
	var (
		ctx context.Context
		cb  *circuitbreaker.CircuitBreaker
	)

	BeforeEach(func() {
		ctx = context.Background()
		cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultTargetConfig(), nil)
	})

	Context("without a call timeout", func() {
		It("should return the value and record a success", func() {
			value, err := circuitbreaker.Do(ctx, cb, "api", func(ctx context.Context) (int, error) {
				return 42, nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(42))
			Expect(cb.FailureCount()).To(Equal(uint32(0)))
		})

		It("should wrap an operation error as call-failed and record one failure", func() {
			boom := errors.New("boom")

			_, err := circuitbreaker.Do(ctx, cb, "api", func(ctx context.Context) (int, error) {
				return 0, boom
			})

			Expect(err).To(HaveOccurred())
			Expect(circuitbreaker.IsCallFailed(err)).To(BeTrue())
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(cb.FailureCount()).To(Equal(uint32(1)))
		})
	})

	Context("when the circuit is open", func() {
		BeforeEach(func() {
			cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.TargetConfig{
				FailureThreshold: 1,
				SuccessThreshold: 3,
				ResetTimeout:     time.Minute,
				HalfOpenMaxCalls: 3,
			}, nil)
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should fail fast without invoking the operation", func() {
			var invocations atomic.Int32

			_, err := circuitbreaker.Do(ctx, cb, "payment-api", func(ctx context.Context) (int, error) {
				invocations.Add(1)
				return 42, nil
			})

			Expect(err).To(HaveOccurred())
			Expect(circuitbreaker.IsCircuitOpen(err)).To(BeTrue())
			Expect(invocations.Load()).To(Equal(int32(0)))

			var cbErr *circuitbreaker.Error
			Expect(errors.As(err, &cbErr)).To(BeTrue())
			target, ok := cbErr.Target()
			Expect(ok).To(BeTrue())
			Expect(target).To(Equal("payment-api"))
		})
	})

	Context("with a call timeout", func() {
		BeforeEach(func() {
			cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.TargetConfig{
				FailureThreshold: 5,
				SuccessThreshold: 3,
				ResetTimeout:     30 * time.Second,
				HalfOpenMaxCalls: 3,
				CallTimeout:      50 * time.Millisecond,
			}, nil)
		})

		It("should return the value when the operation beats the timer", func() {
			value, err := circuitbreaker.Do(ctx, cb, "api", func(ctx context.Context) (string, error) {
				return "fast", nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("fast"))
		})

		It("should return a timeout and record a failure when the operation is too slow", func() {
			_, err := circuitbreaker.Do(ctx, cb, "api", func(ctx context.Context) (string, error) {
				select {
				case <-time.After(500 * time.Millisecond):
					return "late", nil // would have succeeded eventually
				case <-ctx.Done():
					return "", ctx.Err()
				}
			})

			Expect(err).To(HaveOccurred())
			Expect(circuitbreaker.IsTimeout(err)).To(BeTrue())
			Expect(cb.FailureCount()).To(Equal(uint32(1)))

			var cbErr *circuitbreaker.Error
			Expect(errors.As(err, &cbErr)).To(BeTrue())
			d, ok := cbErr.Duration()
			Expect(ok).To(BeTrue())
			Expect(d).To(Equal(50 * time.Millisecond))
		})

		It("should pass a deadline context to the operation", func() {
			_, err := circuitbreaker.Do(ctx, cb, "api", func(ctx context.Context) (string, error) {
				deadline, ok := ctx.Deadline()
				Expect(ok).To(BeTrue())
				Expect(time.Until(deadline)).To(BeNumerically("<=", 50*time.Millisecond))
				return "ok", nil
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should wrap operation errors as call-failed when they beat the timer", func() {
			_, err := circuitbreaker.Do(ctx, cb, "api", func(ctx context.Context) (string, error) {
				return "", errors.New("refused")
			})

			Expect(circuitbreaker.IsCallFailed(err)).To(BeTrue())
			Expect(cb.FailureCount()).To(Equal(uint32(1)))
		})
	})

	Context("with a canceled parent context", func() {
		It("should report call-failed rather than timeout", func() {
			cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.TargetConfig{
				FailureThreshold: 5,
				SuccessThreshold: 3,
				ResetTimeout:     30 * time.Second,
				HalfOpenMaxCalls: 3,
				CallTimeout:      time.Second,
			}, nil)

			cancelCtx, cancel := context.WithCancel(ctx)

			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()

			_, err := circuitbreaker.Do(cancelCtx, cb, "api", func(ctx context.Context) (string, error) {
				<-ctx.Done()
				time.Sleep(100 * time.Millisecond) // slower than the select on ctx.Done
				return "", ctx.Err()
			})

			Expect(err).To(HaveOccurred())
			Expect(circuitbreaker.IsTimeout(err)).To(BeFalse())
		})
	})

	Describe("Exec", func() {
		It("should run value-less operations through the same protocol", func() {
			err := circuitbreaker.Exec(ctx, cb, "api", func(ctx context.Context) error {
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			err = circuitbreaker.Exec(ctx, cb, "api", func(ctx context.Context) error {
				return errors.New("boom")
			})
			Expect(circuitbreaker.IsCallFailed(err)).To(BeTrue())
			Expect(cb.FailureCount()).To(Equal(uint32(1)))
		})
	})
})
