package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeScripter counts script runs per key the way the Lua script does.
type fakeScripter struct {
	counts map[string]int64
	keys   []string
	args   []interface{}
	err    error
}

func (f *fakeScripter) run(ctx context.Context, keys []string, args []interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.keys = keys
	f.args = args
	f.counts[keys[0]]++
	cmd.SetVal(f.counts[keys[0]])
	return cmd
}

func (f *fakeScripter) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args)
}

func (f *fakeScripter) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args)
}

func (f *fakeScripter) EvalRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args)
}

func (f *fakeScripter) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceCmd(ctx)
}

func (f *fakeScripter) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func TestFixedWindowLimiter_Allow(t *testing.T) {
	scripter := &fakeScripter{}
	limiter := NewFixedWindowLimiter(scripter, 3, time.Minute)
	ctx := context.Background()

	want := []bool{true, true, true, false}
	for i, w := range want {
		got, err := limiter.Allow(ctx, "auth:ip:1.2.3.4")
		if err != nil {
			t.Fatalf("hit %d: unexpected error %v", i+1, err)
		}
		if got != w {
			t.Fatalf("hit %d: allowed = %v, want %v", i+1, got, w)
		}
	}

	if len(scripter.keys) != 1 || scripter.keys[0] != "rl:auth:ip:1.2.3.4" {
		t.Fatalf("keys = %v, want [rl:auth:ip:1.2.3.4]", scripter.keys)
	}
	if len(scripter.args) != 1 || scripter.args[0] != int64(60) {
		t.Fatalf("args = %v, want [60]", scripter.args)
	}

	// other keys have their own window
	if ok, err := limiter.Allow(ctx, "auth:ip:5.6.7.8"); err != nil || !ok {
		t.Fatalf("separate key: allowed = %v, err = %v", ok, err)
	}
}

func TestFixedWindowLimiter_AllowError(t *testing.T) {
	boom := errors.New("connection refused")
	limiter := NewFixedWindowLimiter(&fakeScripter{err: boom}, 3, time.Minute)

	ok, err := limiter.Allow(context.Background(), "proposal:user:7")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if ok {
		t.Fatal("a failed check must not report allowed")
	}
}

func TestWindowSeconds(t *testing.T) {
	tests := []struct {
		window time.Duration
		want   int64
	}{
		{time.Minute, 60},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{0, 1},
		{100 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		if got := windowSeconds(tt.window); got != tt.want {
			t.Errorf("windowSeconds(%v) = %d, want %d", tt.window, got, tt.want)
		}
	}
}

func TestToCount(t *testing.T) {
	if n, err := toCount(int64(3)); err != nil || n != 3 {
		t.Fatalf("int64: got %d, %v", n, err)
	}
	if n, err := toCount(float64(4)); err != nil || n != 4 {
		t.Fatalf("float64: got %d, %v", n, err)
	}
	if _, err := toCount("5"); err == nil {
		t.Fatal("string result should be rejected")
	}
}
