package registry

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/headsync/pkg/headtag"
)

func linkTags(href string) Tags {
	return Tags{headtag.TypeLink: {headtag.Link(headtag.A{"rel": headtag.S("canonical"), "href": headtag.S(href)})}}
}

func sequences(cs []Contribution) []uint64 {
	out := make([]uint64, len(cs))
	for i, c := range cs {
		out[i] = c.Sequence
	}
	return out
}

func TestRegisterAssignsIncreasingSequences(t *testing.T) {
	r := New()
	a := r.Register(linkTags("/a"))
	b := r.Register(linkTags("/b"))
	c := r.Register(nil)

	if a == b || b == c || a == "" {
		t.Fatalf("IDs should be unique and non-empty: %q %q %q", a, b, c)
	}

	snap := r.Snapshot()
	if diff := cmp.Diff([]uint64{1, 2, 3}, sequences(snap)); diff != "" {
		t.Errorf("sequences (-want +got):\n%s", diff)
	}
	if snap[0].ID != a || snap[2].ID != c {
		t.Errorf("snapshot order = %v, want registration order", snap)
	}
	if snap[2].Tags == nil {
		t.Error("nil tags should be stored as an empty map")
	}
}

func TestUpdateKeepsSequence(t *testing.T) {
	r := New()
	a := r.Register(linkTags("/a"))
	b := r.Register(linkTags("/b"))

	if !r.Update(a, linkTags("/a2")) {
		t.Fatal("Update(a) = false")
	}

	snap := r.Snapshot()
	if snap[0].ID != a || snap[1].ID != b {
		t.Fatal("Update must not move a contribution ahead of later registrations")
	}
	if snap[0].Sequence != 1 {
		t.Errorf("Sequence = %d after update, want 1", snap[0].Sequence)
	}
	href, _ := snap[0].Tags[headtag.TypeLink][0].Value("href")
	if href != "/a2" {
		t.Errorf("href = %q, want /a2", href)
	}
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	r := New()
	a := r.Register(linkTags("/a"))

	if r.Update("missing", linkTags("/x")) {
		t.Error("Update(missing) = true")
	}
	if r.Unregister("missing") {
		t.Error("Unregister(missing) = true")
	}
	if !r.Unregister(a) {
		t.Error("Unregister(a) = false")
	}
	if r.Unregister(a) {
		t.Error("second Unregister(a) = true")
	}
	if r.Update(a, linkTags("/late")) {
		t.Error("Update after Unregister = true")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestSequencesAreNeverReused(t *testing.T) {
	r := New()
	a := r.Register(nil)
	r.Unregister(a)
	r.Register(nil)

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Sequence != 2 {
		t.Errorf("snapshot = %+v, want single contribution with sequence 2", snap)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	input := linkTags("/a")
	id := r.Register(input)

	input[headtag.TypeLink][0] = headtag.Link(headtag.A{"rel": headtag.S("icon"), "href": headtag.S("/i")})
	input[headtag.TypeMeta] = nil

	snap := r.Snapshot()
	snap[0].Tags[headtag.TypeLink] = nil

	got, ok := r.Get(id)
	if !ok {
		t.Fatal("Get() ok = false")
	}
	if len(got.Tags) != 1 {
		t.Errorf("stored tags changed through caller map: %v", got.Tags)
	}
	rel, _ := got.Tags[headtag.TypeLink][0].Value("rel")
	if rel != "canonical" {
		t.Errorf("rel = %q, stored tags changed through caller slice", rel)
	}
}

func TestConcurrentRegister(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := r.Register(nil)
			r.Update(id, linkTags("/x"))
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if len(snap) != 50 {
		t.Fatalf("len = %d, want 50", len(snap))
	}
	for i, c := range snap {
		if c.Sequence != uint64(i+1) {
			t.Fatalf("sequence[%d] = %d, want %d", i, c.Sequence, i+1)
		}
	}
}
