package orm

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

type parent struct {
	Model    `orm:"table:parent"`
	ID       int `orm:"id"`
	Name     string
	Child    Ref[child]
	Children Many[child]
}

type child struct {
	Model `orm:"table:child"`
	ID    int `orm:"id"`
	Data  string
}

type library struct {
	Model `orm:"table:library"`
	ID    int64      `orm:"id"`
	Books Many[book] `orm:"jointable"`
}

type book struct {
	Model `orm:"table:book"`
	ID    int64 `orm:"id"`
	Title string
}

// token is keyed by the application
type token struct {
	Model `orm:"table:token"`
	ID    string `orm:"id;noauto;type:VARCHAR(13)"`
	Label string
}

type record struct {
	Model  `orm:"table:record"`
	ID     int `orm:"id"`
	Active bool
	Note   *string
	Seen   time.Time
}

type person struct {
	Model  `orm:"table:person"`
	ID     int `orm:"id"`
	Name   string
	Friend Ref[person]
}

const (
	insertParent   = "INSERT INTO parent (`id`,`name`,`_version`) VALUES (DEFAULT,'p',1)"
	selectParent   = "SELECT `id`,`name`,`_version` FROM parent WHERE id = 1 LIMIT 1"
	selectChild    = "SELECT `id`,`data`,`_version` FROM child WHERE `parent_child_fk` = 1"
	selectChildren = "SELECT `id`,`data`,`_version` FROM child WHERE `parent_children_fk` = 1"
)

var (
	parentColumns = []string{"id", "name", "_version"}
	childColumns  = []string{"id", "data", "_version"}
)

func newTestFactory(t *testing.T, opts ...Option) (*Factory, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := NewFactory(db, opts...)
	require.NoError(t, f.Register(&parent{}, &child{}, &library{}, &book{}, &person{}))
	return f, mock
}

func newParentDao(t *testing.T) (*Dao[parent], sqlmock.Sqlmock) {
	t.Helper()

	f, mock := newTestFactory(t)
	dao, err := NewDao[parent](f)
	require.NoError(t, err)
	return dao, mock
}

// findParent loads parent 1 at the given version
func findParent(t *testing.T, dao *Dao[parent], mock sqlmock.Sqlmock, version int) *parent {
	t.Helper()

	mock.ExpectQuery(selectParent).
		WillReturnRows(sqlmock.NewRows(parentColumns).AddRow(int64(1), "p", int64(version)))

	p, err := dao.Find(context.Background(), 1)
	require.NoError(t, err)
	return p
}

// newDao returns a Dao on a factory holding T alone
func newDao[T any](t *testing.T) (*Dao[T], sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dao, err := NewDao[T](NewFactory(db))
	require.NoError(t, err)
	return dao, mock
}
