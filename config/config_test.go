// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func unset[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

func failing[T any](err error) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, err
	})
}

func TestRead(t *testing.T) {
	testCases := []struct {
		name      string
		reader    Reader[string]
		expected  string
		expectErr error
	}{
		{
			name:     "returns the value when set",
			reader:   ReaderOf("test"),
			expected: "test",
		},
		{
			name:      "returns the reader error",
			reader:    failing[string](errors.New("read failed")),
			expectErr: errors.New("read failed"),
		},
		{
			name:      "returns ErrValueNotSet when unset",
			reader:    unset[string](),
			expectErr: ErrValueNotSet,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Read(context.Background(), tc.reader)
			if tc.expectErr != nil {
				require.EqualError(t, err, tc.expectErr.Error())
				require.Zero(t, v)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, v)
		})
	}
}

func TestMust(t *testing.T) {
	t.Run("panics when unset", func(t *testing.T) {
		require.Panics(t, func() {
			Must(context.Background(), unset[int]())
		})
	})

	t.Run("returns the value when set", func(t *testing.T) {
		require.Equal(t, 1, Must(context.Background(), ReaderOf(1)))
	})
}

func TestMustOr(t *testing.T) {
	testCases := []struct {
		name     string
		reader   Reader[time.Duration]
		expected time.Duration
	}{
		{
			name:     "returns the default for a nil reader",
			expected: time.Second,
		},
		{
			name:     "returns the default when unset",
			reader:   unset[time.Duration](),
			expected: time.Second,
		},
		{
			name:     "returns the value when set",
			reader:   ReaderOf(time.Minute),
			expected: time.Minute,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := MustOr(context.Background(), time.Second, tc.reader)
			require.Equal(t, tc.expected, v)
		})
	}

	t.Run("panics when the reader fails", func(t *testing.T) {
		require.Panics(t, func() {
			MustOr(context.Background(), 1, failing[int](errors.New("boom")))
		})
	})
}

func TestOr(t *testing.T) {
	t.Run("returns the first set value", func(t *testing.T) {
		v, err := Read(context.Background(), Or(unset[string](), ReaderOf("b"), ReaderOf("c")))
		require.NoError(t, err)
		require.Equal(t, "b", v)
	})

	t.Run("stops at the first error", func(t *testing.T) {
		_, err := Read(context.Background(), Or(unset[string](), failing[string](errors.New("boom")), ReaderOf("c")))
		require.EqualError(t, err, "boom")
	})

	t.Run("is unset when every reader is unset", func(t *testing.T) {
		_, err := Read(context.Background(), Or(unset[string](), unset[string]()))
		require.ErrorIs(t, err, ErrValueNotSet)
	})
}

func TestMap(t *testing.T) {
	double := func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	}

	t.Run("transforms set values", func(t *testing.T) {
		v, err := Read(context.Background(), Map(ReaderOf(2), double))
		require.NoError(t, err)
		require.Equal(t, 4, v)
	})

	t.Run("passes unset values through", func(t *testing.T) {
		_, err := Read(context.Background(), Map(unset[int](), double))
		require.ErrorIs(t, err, ErrValueNotSet)
	})

	t.Run("returns the transform error", func(t *testing.T) {
		_, err := Read(context.Background(), Map(ReaderOf(2), func(context.Context, int) (int, error) {
			return 0, errors.New("boom")
		}))
		require.EqualError(t, err, "boom")
	})
}

func TestBind(t *testing.T) {
	t.Run("reads the reader built from the value", func(t *testing.T) {
		r := Bind(ReaderOf("PORT"), func(_ context.Context, name string) Reader[string] {
			return ReaderOf(name + "=8080")
		})

		v, err := Read(context.Background(), r)
		require.NoError(t, err)
		require.Equal(t, "PORT=8080", v)
	})

	t.Run("does not call f when unset", func(t *testing.T) {
		called := false
		r := Bind(unset[string](), func(context.Context, string) Reader[string] {
			called = true
			return ReaderOf("x")
		})

		_, err := Read(context.Background(), r)
		require.ErrorIs(t, err, ErrValueNotSet)
		require.False(t, called)
	})
}
