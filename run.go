// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package switchyard

import (
	"context"
	"os"
	"os/signal"

	"github.com/z5labs/switchyard/internal/try"
)

// Runtime is anything which runs until its context is cancelled, such as a [Server].
type Runtime interface {
	Run(context.Context) error
}

// Run runs rt and returns a recovered panic as a [try.PanicError]. If
// any signals are given, receiving one of them cancels the context
// passed to rt.
func Run(ctx context.Context, rt Runtime, signals ...os.Signal) (err error) {
	defer try.Recover(&err)

	if len(signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, signals...)
		defer cancel()
	}
	return rt.Run(ctx)
}
