package flow

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestFetchAll_PreservesPageOrder(t *testing.T) {
	pages := map[string]Page[string]{
		"":       {Items: []string{"a", "b"}, NextToken: "t1"},
		"t1":     {Items: []string{"c"}},
	}
	got, err := FetchAll(context.Background(), func(ctx context.Context, token string) (Page[string], error) {
		return pages[token], nil
	}, FetchOptions{PageDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("items = %v, want %v", got, want)
	}
}

func TestFetchAll_EmptyTokenEndsRegardlessOfItemCount(t *testing.T) {
	calls := 0
	got, err := FetchAll(context.Background(), func(ctx context.Context, token string) (Page[int], error) {
		calls++
		return Page[int]{Items: []int{1, 2, 3, 4, 5}}, nil
	}, FetchOptions{PageDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(got) != 5 {
		t.Errorf("items = %d, want 5", len(got))
	}
}

func TestFetchAll_ErrorAbortsWithoutPartialResults(t *testing.T) {
	boom := errors.New("page two exploded")
	got, err := FetchAll(context.Background(), func(ctx context.Context, token string) (Page[string], error) {
		if token == "" {
			return Page[string]{Items: []string{"a"}, NextToken: "t1"}, nil
		}
		return Page[string]{}, boom
	}, FetchOptions{PageDelay: time.Millisecond})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want upstream error", err)
	}
	if got != nil {
		t.Errorf("items = %v, want nil on failure", got)
	}
}

func TestFetchAll_PageCeiling(t *testing.T) {
	_, err := FetchAll(context.Background(), func(ctx context.Context, token string) (Page[int], error) {
		return Page[int]{Items: []int{1}, NextToken: "more"}, nil
	}, FetchOptions{PageDelay: time.Millisecond, MaxPages: 3})
	if !errors.Is(err, ErrTooManyPages) {
		t.Fatalf("err = %v, want ErrTooManyPages", err)
	}
}

func TestFetchAll_NoDelayBeforeFirstPage(t *testing.T) {
	start := time.Now()
	_, err := FetchAll(context.Background(), func(ctx context.Context, token string) (Page[int], error) {
		return Page[int]{}, nil
	}, FetchOptions{PageDelay: time.Second})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("single-page fetch took %v, delay should only apply between pages", elapsed)
	}
}
