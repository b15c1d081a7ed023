package crawler

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"
)

func TestQueue(t *testing.T) {
	t.Parallel()

	t.Run("pops in FIFO order", func(t *testing.T) {
		t.Parallel()

		q := NewQueue()
		a, b, c := newNode("a"), newNode("b"), newNode("c")
		q.Push(a)
		q.Push(b)
		q.Push(c)

		for _, want := range []*Node{a, b, c} {
			got, ok := q.Pop(context.Background(), time.Second)
			if !ok {
				t.Fatal("expected an item")
			}
			if got != want {
				t.Errorf("got %s, want %s", got.URL(), want.URL())
			}
		}
		if q.Len() != 0 {
			t.Errorf("expected empty queue, got %d", q.Len())
		}
	})

	t.Run("pop times out on empty queue", func(t *testing.T) {
		t.Parallel()

		q := NewQueue()
		start := time.Now()
		_, ok := q.Pop(context.Background(), 50*time.Millisecond)
		if ok {
			t.Fatal("expected empty signal")
		}
		if time.Since(start) < 50*time.Millisecond {
			t.Error("pop returned before the timeout")
		}
	})

	t.Run("pop wakes on push", func(t *testing.T) {
		t.Parallel()

		q := NewQueue()
		n := newNode("late")
		go func() {
			time.Sleep(20 * time.Millisecond)
			q.Push(n)
		}()

		got, ok := q.Pop(context.Background(), 5*time.Second)
		if !ok || got != n {
			t.Fatalf("expected pushed node, got %v %v", got, ok)
		}
	})

	t.Run("pop returns on cancel", func(t *testing.T) {
		t.Parallel()

		q := NewQueue()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, ok := q.Pop(ctx, 5*time.Second); ok {
			t.Fatal("expected empty signal after cancel")
		}
	})

	t.Run("concurrent consumers receive every item once", func(t *testing.T) {
		t.Parallel()

		q := NewQueue()
		const items = 200
		for i := range items {
			q.Push(newNode(string(rune('a' + i%26))))
		}

		var (
			mu    sync.Mutex
			count int
			wg    sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					if _, ok := q.Pop(context.Background(), 20*time.Millisecond); !ok {
						return
					}
					mu.Lock()
					count++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if count != items {
			t.Errorf("expected %d pops, got %d", items, count)
		}
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("http://ex.org/")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("equivalent URLs share a node", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(base)
		a := r.GetOrCreate("http://ex.org/a#x")
		b := r.GetOrCreate("/a")
		c := r.GetOrCreate("HTTP://EX.ORG/a?")
		if a != b || b != c {
			t.Error("expected one node for equivalent URLs")
		}
		if a.URL() != "http://ex.org/a" {
			t.Errorf("unexpected URL %q", a.URL())
		}
		if r.Len() != 1 {
			t.Errorf("expected 1 node, got %d", r.Len())
		}
	})

	t.Run("concurrent get-or-create", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(base)
		nodes := make([]*Node, 50)
		var wg sync.WaitGroup
		for i := range nodes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				nodes[i] = r.GetOrCreate("/same")
			}()
		}
		wg.Wait()

		for _, n := range nodes {
			if n != nodes[0] {
				t.Fatal("concurrent callers received different nodes")
			}
		}
	})

	t.Run("lookup does not create", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry(base)
		if _, ok := r.Lookup("/missing"); ok {
			t.Error("unexpected node")
		}
		if r.Len() != 0 {
			t.Error("lookup created a node")
		}
	})
}

func TestVisitedClaim(t *testing.T) {
	t.Parallel()

	v := newVisitedSet()
	n := newNode("http://ex.org/")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.claim(n) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one successful claim, got %d", wins)
	}
	if !v.contains(n) {
		t.Error("claimed node not reported visited")
	}
}

func TestNodeChildren(t *testing.T) {
	t.Parallel()

	parent := newNode("http://ex.org/")
	b := newNode("http://ex.org/b")
	c := newNode("http://ex.org/c")

	if !parent.AddChild(c) || !parent.AddChild(b) {
		t.Fatal("expected new children to be added")
	}
	if parent.AddChild(b) {
		t.Error("duplicate child reported as new")
	}

	children := parent.Children()
	if len(children) != 2 || children[0] != b || children[1] != c {
		t.Errorf("unexpected children order: %v", children)
	}
}
