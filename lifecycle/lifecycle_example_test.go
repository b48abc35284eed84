// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package lifecycle

import (
	"context"
	"fmt"
)

func ExampleBus() {
	var b Bus

	Subscribe(&b, ServerListening, func(ctx context.Context, l Listener) error {
		fmt.Println("listening on", l.Addr)
		return nil
	})
	b.Once(ServerClosed, HandlerFunc(func(ctx context.Context, payload any) error {
		fmt.Println("closed")
		return nil
	}))

	_ = b.Emit(context.Background(), ServerListening, Listener{Network: "tcp", Addr: ":8080"})
	_ = b.Emit(context.Background(), ServerClosed, nil)
	_ = b.Emit(context.Background(), ServerClosed, nil)

	// Output: listening on :8080
	// closed
}
