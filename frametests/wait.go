package frametests

import (
	"context"
	"fmt"
	"time"

	"github.com/pitabwire/translation-manager/data"
)

// WaitForConditionWithResult polls condition until it returns a result, or an error other than
// a missing row, or timeout passes.
func WaitForConditionWithResult[T any](
	ctx context.Context,
	condition func() (*T, error),
	timeout time.Duration,
	pollInterval time.Duration,
) (*T, error) {
	return WaitForCheckedConditionWithResult(ctx, condition, func(t *T, err error) bool {
		if err != nil {
			return !data.ErrorIsNoRows(err)
		}
		return t != nil
	}, timeout, pollInterval)
}

// WaitForCheckedConditionWithResult polls condition until canReturnChecker accepts its outcome
// or timeout passes.
func WaitForCheckedConditionWithResult[T any](
	ctx context.Context,
	condition func() (*T, error), canReturnChecker func(*T, error) bool,
	timeout time.Duration,
	pollInterval time.Duration,
) (*T, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		result, err := condition()
		if canReturnChecker(result, err) {
			return result, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return nil, fmt.Errorf("condition not met within timeout of %v", timeout)
}
