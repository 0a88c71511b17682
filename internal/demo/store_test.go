package demo

import (
	"context"
	"reflect"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/taskboards/taskboards/internal/types"
)

func TestMemoryStoreDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	seed := SeedTasks()
	store := NewMemoryStore(seed)
	seed[0].Title = "mutated"

	tasks, _ := store.Load(ctx)
	if tasks[0].Title != "Draft onboarding flow" {
		t.Fatalf("store aliased its seed: %q", tasks[0].Title)
	}
	tasks[1].Tags[0] = "mutated"
	again, _ := store.Load(ctx)
	if again[1].Tags[0] != "frontend" {
		t.Fatalf("Load aliased the dataset")
	}
}

func newRedisStore(t *testing.T, seed []types.Task) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, seed)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreSeedsMissingKey(t *testing.T) {
	store, mr := newRedisStore(t, SeedTasks())

	tasks, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(tasks, SeedTasks()) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if !mr.Exists(DefaultRedisKey) {
		t.Fatal("seed was not written back")
	}
}

func TestRedisStoreReplaceIsShared(t *testing.T) {
	store, mr := newRedisStore(t, SeedTasks())
	ctx := context.Background()

	next := []types.Task{{ID: "m2", Title: "Implement column reorder", Status: types.StatusDone}}
	if err := store.Replace(ctx, next); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	other := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	defer other.Close()
	got, err := other.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, next) {
		t.Fatalf("second process sees %#v", got)
	}
}

func TestRedisStoreDropsCorruptValue(t *testing.T) {
	store, mr := newRedisStore(t, SeedTasks()[:1])
	if err := mr.Set(DefaultRedisKey, "{not json"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	tasks, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "m1" {
		t.Fatalf("expected reseeded dataset, got %#v", tasks)
	}
}

func TestRedisStoreReportsConnectionErrors(t *testing.T) {
	store, mr := newRedisStore(t, nil)
	mr.Close()

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected error with redis down")
	}
}

func TestOpenRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := OpenRedisStore(context.Background(), "redis://"+mr.Addr()+"/0", nil)
	if err != nil {
		t.Fatalf("OpenRedisStore: %v", err)
	}
	store.Close()

	if _, err := OpenRedisStore(context.Background(), "not a url", nil); err == nil {
		t.Fatal("expected parse error")
	}
}
