package store

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// User is a row in the users table. PasswordHash never leaves the
// backend; API responses are built from the other fields.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Bio          *string
	Image        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is another user as seen by the viewing user.
type Profile struct {
	UserID    int64   `json:"-"`
	Username  string  `json:"username"`
	Bio       *string `json:"bio"`
	Image     *string `json:"image"`
	Following bool    `json:"following"`
}

// ArticleDetails is an article rendered for the viewing user, with tags,
// favorite state, and the author's profile resolved in one round trip.
type ArticleDetails struct {
	ID             int64     `json:"-"`
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Body           string    `json:"body"`
	TagList        []string  `json:"tagList"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Favorited      bool      `json:"favorited"`
	FavoritesCount int64     `json:"favoritesCount"`
	Author         Profile   `json:"author"`
}

// CommentDetails is a comment rendered for the viewing user.
type CommentDetails struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Body      string    `json:"body"`
	Author    Profile   `json:"author"`
}

// rowToUser maps a full users row.
func rowToUser(row pgx.CollectableRow) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.Bio, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// rowToProfile maps a profile row: id, username, bio, image, following
// count. The count comes from an aggregate, so any positive value means
// the viewer follows this user.
func rowToProfile(row pgx.CollectableRow) (Profile, error) {
	var p Profile
	var following int64
	if err := row.Scan(&p.UserID, &p.Username, &p.Bio, &p.Image, &following); err != nil {
		return Profile{}, err
	}
	p.Following = following > 0
	return p, nil
}

// rowToArticleDetails maps an article details row. The tag aggregate is
// NULL for untagged articles; that still renders as an empty list.
func rowToArticleDetails(row pgx.CollectableRow) (ArticleDetails, error) {
	var a ArticleDetails
	var tags *string
	var favorited int64
	var following int64
	if err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Description, &a.Body,
		&a.CreatedAt, &a.UpdatedAt, &tags, &favorited, &a.FavoritesCount,
		&a.Author.UserID, &a.Author.Username, &a.Author.Bio, &a.Author.Image,
		&following); err != nil {
		return ArticleDetails{}, err
	}
	a.TagList = splitTags(tags)
	a.Favorited = favorited > 0
	a.Author.Following = following > 0
	return a, nil
}

// rowToCommentDetails maps a comment details row.
func rowToCommentDetails(row pgx.CollectableRow) (CommentDetails, error) {
	var c CommentDetails
	var following int64
	if err := row.Scan(&c.ID, &c.Body, &c.CreatedAt, &c.UpdatedAt,
		&c.Author.UserID, &c.Author.Username, &c.Author.Bio, &c.Author.Image,
		&following); err != nil {
		return CommentDetails{}, err
	}
	c.Author.Following = following > 0
	return c, nil
}

// splitTags unpacks the comma-joined tag aggregate. Always returns a
// non-nil slice so tagList serializes as [] rather than null.
func splitTags(tags *string) []string {
	if tags == nil || *tags == "" {
		return []string{}
	}
	return strings.Split(*tags, ",")
}
