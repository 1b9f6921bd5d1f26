package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{-3: DefaultLimit, 0: DefaultLimit, 1: 1, 40: 40, MaxLimit: MaxLimit, 500: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 4, 2, 9, 30, 0, 123456789, time.UTC), ID: uuid.New()}
	encoded := Encode(want)
	for _, r := range encoded {
		if r == '+' || r == '/' || r == '=' {
			t.Fatalf("cursor %q is not URL safe", encoded)
		}
	}
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	empty, err := Decode("  ")
	if err != nil || empty != nil {
		t.Fatalf("blank cursor should mean first page, got %v %v", empty, err)
	}
	for _, value := range []string{"not-a-cursor", "%%%", Encode(Cursor{})} {
		if _, err := Decode(value); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("Decode(%q) = %v, want ErrInvalidCursor", value, err)
		}
	}
}

func TestPaginate(t *testing.T) {
	base := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	position := func(i int) Cursor { return Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Hour), ID: ids[i]} }

	page := Paginate([]int{0, 1, 2}, 2, position)
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected a trimmed page with a cursor, got %+v", page)
	}
	next, err := Decode(page.NextCursor)
	if err != nil || next.ID != ids[1] {
		t.Fatalf("cursor should point at the last kept row, got %+v %v", next, err)
	}

	last := Paginate([]int{0, 1}, 2, position)
	if len(last.Items) != 2 || last.NextCursor != "" {
		t.Fatalf("expected final page without cursor, got %+v", last)
	}
}
