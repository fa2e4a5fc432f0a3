// Package retry provides a bounded retry loop and a context-aware wait.
//
// The credential acquirer uses it to poll a visible browser at a fixed
// interval until a token appears or the attempt budget is spent:
//
//	err := retry.Do(func() error {
//		if !haveToken() {
//			return errNotYet
//		}
//		return nil
//	}, &retry.Config{
//		MaxAttempts: 60,
//		Backoff:     &retry.ConstantBackoff{Delay: 2 * time.Second},
//		Context:     ctx,
//	})
//
// The orchestrator uses Wait for its fixed pauses so that cancellation
// interrupts them.
package retry
