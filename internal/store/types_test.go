package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow is a pgx.CollectableRow over canned values.
type fakeRow struct {
	vals []any
}

func (r *fakeRow) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRow) Values() ([]any, error)                       { return r.vals, nil }
func (r *fakeRow) RawValues() [][]byte                          { return nil }

func (r *fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.vals))
	}
	for i, d := range dest {
		v := r.vals[i]
		switch d := d.(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestRowToUser(t *testing.T) {
	now := time.Now()
	row := &fakeRow{vals: []any{
		int64(7), "jake", "jake@example.com", "$argon2id$hash",
		"I work at statefarm", nil, now, now,
	}}

	u, err := rowToUser(row)
	if err != nil {
		t.Fatalf("rowToUser: %v", err)
	}
	if u.ID != 7 || u.Username != "jake" || u.Email != "jake@example.com" {
		t.Errorf("rowToUser = %+v, identity fields wrong", u)
	}
	if u.Bio == nil || *u.Bio != "I work at statefarm" {
		t.Errorf("Bio = %v, want set", u.Bio)
	}
	if u.Image != nil {
		t.Errorf("Image = %v, want nil", u.Image)
	}
}

func TestRowToProfile(t *testing.T) {
	for _, tt := range []struct {
		following int64
		want      bool
	}{{0, false}, {1, true}} {
		row := &fakeRow{vals: []any{int64(3), "celeb", nil, nil, tt.following}}
		p, err := rowToProfile(row)
		if err != nil {
			t.Fatalf("rowToProfile: %v", err)
		}
		if p.Following != tt.want {
			t.Errorf("Following with count %d = %v, want %v", tt.following, p.Following, tt.want)
		}
		if p.UserID != 3 || p.Username != "celeb" {
			t.Errorf("rowToProfile = %+v, identity fields wrong", p)
		}
	}
}

func TestRowToArticleDetails(t *testing.T) {
	now := time.Now()
	row := &fakeRow{vals: []any{
		int64(12), "how-to-train-your-dragon", "How to train your dragon",
		"Ever wonder how?", "Very carefully.",
		now, now,
		"dragons,training", int64(1), int64(5),
		int64(3), "jake", nil, nil, int64(0),
	}}

	a, err := rowToArticleDetails(row)
	if err != nil {
		t.Fatalf("rowToArticleDetails: %v", err)
	}
	if a.Slug != "how-to-train-your-dragon" {
		t.Errorf("Slug = %q", a.Slug)
	}
	if len(a.TagList) != 2 || a.TagList[0] != "dragons" || a.TagList[1] != "training" {
		t.Errorf("TagList = %v, want [dragons training]", a.TagList)
	}
	if !a.Favorited || a.FavoritesCount != 5 {
		t.Errorf("favorite fields = %v/%d, want true/5", a.Favorited, a.FavoritesCount)
	}
	if a.Author.Username != "jake" || a.Author.Following {
		t.Errorf("Author = %+v", a.Author)
	}
}

func TestRowToArticleDetails_NullTags(t *testing.T) {
	now := time.Now()
	row := &fakeRow{vals: []any{
		int64(1), "untagged", "Untagged", "", "body",
		now, now,
		nil, int64(0), int64(0),
		int64(2), "author", nil, nil, int64(0),
	}}

	a, err := rowToArticleDetails(row)
	if err != nil {
		t.Fatalf("rowToArticleDetails: %v", err)
	}
	if a.TagList == nil || len(a.TagList) != 0 {
		t.Errorf("TagList = %#v, want empty non-nil slice", a.TagList)
	}
}

func TestRowToCommentDetails(t *testing.T) {
	now := time.Now()
	row := &fakeRow{vals: []any{
		int64(9), "Nice post!", now, now,
		int64(3), "jake", nil, nil, int64(1),
	}}

	c, err := rowToCommentDetails(row)
	if err != nil {
		t.Fatalf("rowToCommentDetails: %v", err)
	}
	if c.ID != 9 || c.Body != "Nice post!" {
		t.Errorf("rowToCommentDetails = %+v", c)
	}
	if !c.Author.Following {
		t.Error("Author.Following = false, want true")
	}
}

func TestSplitTags(t *testing.T) {
	s := "a,b"
	if got := splitTags(&s); len(got) != 2 {
		t.Errorf("splitTags(%q) = %v", s, got)
	}
	empty := ""
	if got := splitTags(&empty); len(got) != 0 || got == nil {
		t.Errorf("splitTags(\"\") = %#v, want empty non-nil", got)
	}
	if got := splitTags(nil); len(got) != 0 || got == nil {
		t.Errorf("splitTags(nil) = %#v, want empty non-nil", got)
	}
}
