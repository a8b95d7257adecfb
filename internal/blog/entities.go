// Package blog holds the sample entities the simphple tool manages.
package blog

import (
	"time"

	"github.com/netbrain/simphple-orm/pkg/orm"
)

// Author writes posts and owns one profile
type Author struct {
	orm.Model `orm:"table:author"`
	ID        int    `orm:"id"`
	Name      string `orm:"notnull"`
	Email     string `orm:"type:VARCHAR(120);unique"`
	Profile   orm.Ref[Profile]
	Posts     orm.Many[Post]
}

// Profile is the optional public page of an author
type Profile struct {
	orm.Model `orm:"table:profile"`
	ID        int    `orm:"id"`
	Bio       string `orm:"type:TEXT"`
	Website   *string
}

// Post is an article with its comments and tags. Tags are shared between
// posts through the post_tag join table.
type Post struct {
	orm.Model `orm:"table:post"`
	ID        int64  `orm:"id"`
	Title     string `orm:"notnull"`
	Body      string `orm:"type:TEXT"`
	Published bool   `orm:"default:false"`
	CreatedAt time.Time
	Comments  orm.Many[Comment]
	Tags      orm.Many[Tag] `orm:"jointable"`
}

// Comment is a reader's reply to a post
type Comment struct {
	orm.Model `orm:"table:comment"`
	ID        int64 `orm:"id"`
	Body      string
	Score     *int
}

// Tag is keyed by its slug
type Tag struct {
	orm.Model `orm:"table:tag"`
	Slug      string `orm:"id;noauto;type:VARCHAR(32)"`
	Label     string
}

// Entities returns one value of every entity type, for registration
func Entities() []any {
	return []any{&Author{}, &Profile{}, &Post{}, &Comment{}, &Tag{}}
}
