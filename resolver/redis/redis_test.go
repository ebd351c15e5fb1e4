package redis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/batchcache"
	"github.com/unkn0wn-root/batchcache/codec"
)

// fakeRedis answers MGET from a map, recording requested keys.
type fakeRedis struct {
	data map[string]any
	keys [][]string
	err  error
}

func (f *fakeRedis) MGet(ctx context.Context, keys ...string) *goredis.SliceCmd {
	f.keys = append(f.keys, keys)
	cmd := goredis.NewSliceCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	vals := make([]any, len(keys))
	for i, k := range keys {
		vals[i] = f.data[k]
	}
	cmd.SetVal(vals)
	return cmd
}

type score struct {
	Points int `cbor:"p"`
}

func mustEncode(t *testing.T, c codec.Codec[score], v score) string {
	t.Helper()
	b, err := c.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestLoad(t *testing.T) {
	cb := codec.MustCBOR[score](true)
	f := &fakeRedis{data: map[string]any{
		"score:1": mustEncode(t, cb, score{Points: 10}),
		"score:3": []byte(mustEncode(t, cb, score{Points: 30})),
		"score:4": "\xff\xff", // undecodable
	}}
	r, err := New(Options[score]{Client: f, Namespace: "score", Codec: cb})
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Load(context.Background(), []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[int64]score{1: {10}, 3: {30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if !reflect.DeepEqual(f.keys[0], []string{"score:1", "score:2", "score:3", "score:4"}) {
		t.Fatalf("keys=%v", f.keys[0])
	}
}

func TestLoadBareKeys(t *testing.T) {
	f := &fakeRedis{data: map[string]any{"7": "seven"}}
	r, err := New(Options[string]{Client: f, Codec: codec.String{}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Load(context.Background(), []int64{7})
	if err != nil || got[7] != "seven" {
		t.Fatalf("got %v err %v", got, err)
	}
}

func TestLoadError(t *testing.T) {
	boom := errors.New("conn refused")
	r, err := New(Options[string]{Client: &fakeRedis{err: boom}, Codec: codec.String{}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Load(context.Background(), []int64{1}); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Options[string]{Codec: codec.String{}}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
	if _, err := New(Options[string]{Client: &fakeRedis{}}); err == nil {
		t.Fatalf("expected codec error")
	}
}

func TestWithBatcherPartialStaysPending(t *testing.T) {
	f := &fakeRedis{data: map[string]any{"u:1": "one", "u:2": "two"}}
	r, err := New(Options[string]{Client: f, Namespace: "u", Codec: codec.String{}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := batchcache.New(batchcache.Options[string]{Resolver: r.Resolver(), FailMissing: true})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close(context.Background())
	b.SetUniverse([]int64{1, 2, 3})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if v, err := b.Get(ctx, 2); err != nil || v != "two" {
		t.Fatalf("Get(2)=%q,%v", v, err)
	}
	if _, err := b.Get(ctx, 3); !errors.Is(err, batchcache.ErrNotResolved) {
		t.Fatalf("expected ErrNotResolved for 3, got %v", err)
	}
	if s := b.State(3); s != batchcache.Pending {
		t.Fatalf("state=%v want pending", s)
	}
}
