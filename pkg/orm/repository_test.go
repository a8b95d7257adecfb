package orm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("entity without relationships", func(t *testing.T) {
		dao, mock := newParentDao(t)
		mock.ExpectExec(insertParent).WillReturnResult(sqlmock.NewResult(1, 1))

		p := &parent{Name: "p"}
		transient, err := dao.IsTransient(p)
		require.NoError(t, err)
		assert.True(t, transient)
		assert.Zero(t, p.Version())
		assert.False(t, p.Cached())

		id, err := dao.Create(ctx, p)
		require.NoError(t, err)

		assert.Equal(t, 1, id)
		assert.Equal(t, 1, p.ID)
		assert.Equal(t, 1, p.Version())
		assert.False(t, p.IsTransient())
		assert.True(t, p.Cached())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("application assigned key", func(t *testing.T) {
		dao, mock := newDao[token](t)
		mock.ExpectExec("INSERT INTO token (`id`,`label`,`_version`) VALUES ('abc','x',1)").
			WillReturnResult(sqlmock.NewErrorResult(errors.New("no auto increment id")))

		id, err := dao.Create(ctx, &token{ID: "abc", Label: "x"})
		require.NoError(t, err)
		assert.Equal(t, "abc", id)

		mock.ExpectQuery("SELECT `id`,`label`,`_version` FROM token WHERE id = 'abc' LIMIT 1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "label", "_version"}).AddRow("abc", "x", int64(1)))

		found, err := dao.Find(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", found.ID)
		assert.Equal(t, "x", found.Label)
		assert.Equal(t, 1, found.Version())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero values map to NULL and FALSE", func(t *testing.T) {
		dao, mock := newDao[record](t)
		mock.ExpectExec("INSERT INTO record (`id`,`active`,`note`,`seen`,`_version`) VALUES (DEFAULT,FALSE,NULL,NULL,1)").
			WillReturnResult(sqlmock.NewResult(1, 1))

		r := &record{}
		_, err := dao.Create(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, 1, r.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cascades to related entities", func(t *testing.T) {
		dao, mock := newParentDao(t)
		mock.ExpectExec(insertParent).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO child (`id`,`data`,`_version`,`parent_child_fk`,`parent_children_fk`) VALUES (DEFAULT,'a',1,1,NULL)").
			WillReturnResult(sqlmock.NewResult(10, 1))
		mock.ExpectExec("INSERT INTO child (`id`,`data`,`_version`,`parent_child_fk`,`parent_children_fk`) VALUES (DEFAULT,'b',1,NULL,1)").
			WillReturnResult(sqlmock.NewResult(11, 1))
		mock.ExpectExec("INSERT INTO child (`id`,`data`,`_version`,`parent_child_fk`,`parent_children_fk`) VALUES (DEFAULT,'c',1,NULL,1)").
			WillReturnResult(sqlmock.NewResult(12, 1))

		p := &parent{
			Name:     "p",
			Child:    NewRef(&child{Data: "a"}),
			Children: NewMany(&child{Data: "b"}, &child{Data: "c"}),
		}
		_, err := dao.Create(ctx, p)
		require.NoError(t, err)

		assert.Equal(t, 10, p.Child.Peek().ID)
		items, err := p.Children.Items()
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, 11, items[0].ID)
		assert.Equal(t, 12, items[1].ID)
		assert.Equal(t, 1, items[1].Version())

		dirty, err := dao.IsDirty(p)
		require.NoError(t, err)
		assert.False(t, dirty)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("re-parents persisted related entities", func(t *testing.T) {
		dao, mock := newParentDao(t)
		mock.ExpectExec(insertParent).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE child SET `parent_children_fk`=1 WHERE id = 20").
			WillReturnResult(sqlmock.NewResult(0, 1))

		existing := &child{ID: 20, Data: "old"}
		existing.version = 1

		p := &parent{Name: "p", Children: NewMany(existing)}
		_, err := dao.Create(ctx, p)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("links through the join table", func(t *testing.T) {
		f, mock := newTestFactory(t)
		repo, err := f.Repository(&library{})
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO library (`id`,`_version`) VALUES (DEFAULT,1)").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO book (`id`,`title`,`_version`) VALUES (DEFAULT,'x',1)").
			WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectExec("INSERT INTO library_book (`id`,`library_id`,`book_id`) VALUES (DEFAULT,1,7)").
			WillReturnResult(sqlmock.NewResult(1, 1))

		l := &library{Books: NewMany(&book{Title: "x"})}
		id, err := repo.Create(ctx, l)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("related type without repository", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()

		f := NewFactory(db)
		dao, err := NewDao[parent](f)
		require.NoError(t, err)

		mock.ExpectExec(insertParent).WillReturnResult(sqlmock.NewResult(1, 1))

		_, err = dao.Create(ctx, &parent{Name: "p", Child: NewRef(&child{Data: "a"})})
		assert.ErrorIs(t, err, ErrUnhandledEntityType)
	})

	t.Run("driver errors are converted", func(t *testing.T) {
		dao, mock := newParentDao(t)
		mock.ExpectExec(insertParent).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'p'"})

		_, err := dao.Create(ctx, &parent{Name: "p"})
		require.Error(t, err)
		assert.True(t, IsDriverError(err))
		assert.True(t, IsUniqueViolation(err))

		var driverErr *DriverError
		require.True(t, errors.As(err, &driverErr))
		assert.Equal(t, uint16(1062), driverErr.Code)
		assert.Equal(t, insertParent, driverErr.Query)
	})
}

func TestRepository_Find(t *testing.T) {
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 3)

		assert.Equal(t, 1, p.ID)
		assert.Equal(t, "p", p.Name)
		assert.Equal(t, 3, p.Version())
		assert.False(t, p.Child.Loaded())
		assert.False(t, p.Children.Loaded())

		dirty, err := dao.IsDirty(p)
		require.NoError(t, err)
		assert.False(t, dirty)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pointer time and bool columns", func(t *testing.T) {
		dao, mock := newDao[record](t)
		seen := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

		mock.ExpectQuery("SELECT `id`,`active`,`note`,`seen`,`_version` FROM record WHERE id = 1 LIMIT 1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "active", "note", "seen", "_version"}).
				AddRow(int64(1), int64(1), []byte("hi"), seen, int64(1)))

		r, err := dao.Find(ctx, 1)
		require.NoError(t, err)
		assert.True(t, r.Active)
		require.NotNil(t, r.Note)
		assert.Equal(t, "hi", *r.Note)
		assert.Equal(t, seen, r.Seen)

		dirty, err := dao.IsDirty(r)
		require.NoError(t, err)
		assert.False(t, dirty)

		r.Note = nil
		dirty, err = dao.IsDirty(r)
		require.NoError(t, err)
		assert.True(t, dirty)

		mock.ExpectExec("UPDATE record SET `active`=TRUE,`note`=NULL,`seen`='2024-01-02 03:04:05',`_version`=2 WHERE id = 1 AND _version = 1 LIMIT 1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, dao.Update(ctx, r))
		assert.Equal(t, 2, r.Version())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		dao, mock := newParentDao(t)
		mock.ExpectQuery(selectParent).WillReturnRows(sqlmock.NewRows(parentColumns))

		_, err := dao.Find(ctx, 1)
		assert.True(t, IsNotFound(err))
	})

	t.Run("by sql", func(t *testing.T) {
		f, mock := newTestFactory(t)
		dao, err := NewDao[child](f)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT * FROM child WHERE data = ?").
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"id", "data", "_version", "parent_child_fk", "parent_children_fk"}).
				AddRow(int64(4), "a", int64(2), nil, int64(1)).
				AddRow(int64(5), "a", int64(1), nil, int64(1)))

		children, err := dao.FindBySQL(ctx, "SELECT * FROM child WHERE data = ?", "a")
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, 4, children[0].ID)
		assert.Equal(t, 2, children[0].Version())
		assert.Equal(t, 5, children[1].ID)
	})

	t.Run("by sql without rows", func(t *testing.T) {
		f, mock := newTestFactory(t)
		dao, err := NewDao[child](f)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT * FROM child WHERE data = ?").
			WithArgs("zzz").
			WillReturnRows(sqlmock.NewRows(childColumns))

		children, err := dao.FindBySQL(ctx, "SELECT * FROM child WHERE data = ?", "zzz")
		require.NoError(t, err)
		assert.Empty(t, children)
	})

	t.Run("all", func(t *testing.T) {
		dao, mock := newParentDao(t)
		mock.ExpectQuery("SELECT * FROM parent").
			WillReturnRows(sqlmock.NewRows(parentColumns).
				AddRow(int64(1), "a", int64(1)).
				AddRow(int64(2), "b", int64(4)))

		all, err := dao.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "b", all[1].Name)
		assert.Equal(t, 4, all[1].Version())
	})
}

func TestRepository_LazyRelationships(t *testing.T) {
	t.Run("one to one resolves once", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)

		mock.ExpectQuery(selectChild).
			WillReturnRows(sqlmock.NewRows(childColumns).AddRow(int64(10), "a", int64(1)))

		c, err := p.Child.Get()
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, 10, c.ID)
		assert.True(t, p.Child.Loaded())

		again, err := p.Child.Get()
		require.NoError(t, err)
		assert.Same(t, c, again)

		dirty, err := dao.IsDirty(p)
		require.NoError(t, err)
		assert.False(t, dirty)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("one to one without target", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)

		mock.ExpectQuery(selectChild).WillReturnRows(sqlmock.NewRows(childColumns))

		c, err := p.Child.Get()
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("one to many", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)

		mock.ExpectQuery(selectChildren).
			WillReturnRows(sqlmock.NewRows(childColumns).
				AddRow(int64(11), "b", int64(1)).
				AddRow(int64(12), "c", int64(1)))

		n, err := p.Children.Len()
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		second, err := p.Children.At(1)
		require.NoError(t, err)
		assert.Equal(t, "c", second.Data)

		dirty, err := dao.IsDirty(p)
		require.NoError(t, err)
		assert.False(t, dirty)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed fetch is kept", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)

		boom := errors.New("connection reset")
		mock.ExpectQuery(selectChildren).WillReturnError(boom)

		_, err := p.Children.Items()
		require.ErrorIs(t, err, boom)

		_, err = p.Children.Len()
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent readers share one fetch", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)

		mock.ExpectQuery(selectChildren).
			WillDelayFor(50 * time.Millisecond).
			WillReturnRows(sqlmock.NewRows(childColumns).AddRow(int64(11), "b", int64(1)))

		var wg sync.WaitGroup
		counts := make([]int, 2)
		errs := make([]error, 2)
		for i := range counts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				counts[i], errs[i] = p.Children.Len()
			}()
		}
		wg.Wait()

		for i := range counts {
			require.NoError(t, errs[i])
			assert.Equal(t, 1, counts[i])
		}
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("value copies share the fetch", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)
		before := *p

		mock.ExpectQuery(selectChildren).
			WillReturnRows(sqlmock.NewRows(childColumns).AddRow(int64(11), "b", int64(1)))

		n, err := p.Children.Len()
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		after := *p
		for _, cp := range []*parent{&before, &after} {
			assert.True(t, cp.Children.Loaded())
			n, err := cp.Children.Len()
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		}
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("initialize", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)

		mock.ExpectQuery(selectChild).WillReturnRows(sqlmock.NewRows(childColumns))
		mock.ExpectQuery(selectChildren).WillReturnRows(sqlmock.NewRows(childColumns))

		require.NoError(t, dao.Initialize(&p.Child, &p.Children))
		assert.True(t, p.Child.Loaded())
		assert.True(t, p.Children.Loaded())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("initialize deep stops at visited entities", func(t *testing.T) {
		f, mock := newTestFactory(t)
		dao, err := NewDao[person](f)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT `id`,`name`,`_version` FROM person WHERE id = 1 LIMIT 1").
			WillReturnRows(sqlmock.NewRows(parentColumns).AddRow(int64(1), "ann", int64(1)))
		mock.ExpectQuery("SELECT `id`,`name`,`_version` FROM person WHERE `parent_friend_fk` = 1").
			WillReturnRows(sqlmock.NewRows(parentColumns).AddRow(int64(2), "bob", int64(1)))
		mock.ExpectQuery("SELECT `id`,`name`,`_version` FROM person WHERE `parent_friend_fk` = 2").
			WillReturnRows(sqlmock.NewRows(parentColumns))

		ann, err := dao.Find(context.Background(), 1)
		require.NoError(t, err)
		require.NoError(t, dao.InitializeDeep(ann))

		bob := ann.Friend.Peek()
		require.NotNil(t, bob)
		assert.Equal(t, "bob", bob.Name)
		assert.True(t, bob.Friend.Loaded())
		assert.Nil(t, bob.Friend.Peek())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("discards local changes", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)
		p.Name = "local"

		mock.ExpectQuery(selectParent).
			WillReturnRows(sqlmock.NewRows(parentColumns).AddRow(int64(1), "fresh", int64(2)))

		require.NoError(t, dao.Refresh(ctx, p))
		assert.Equal(t, "fresh", p.Name)
		assert.Equal(t, 2, p.Version())

		dirty, err := dao.IsDirty(p)
		require.NoError(t, err)
		assert.False(t, dirty)
	})

	t.Run("deleted row", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 1)

		mock.ExpectQuery(selectParent).WillReturnRows(sqlmock.NewRows(parentColumns))

		err := dao.Refresh(ctx, p)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("transient entity", func(t *testing.T) {
		dao, _ := newParentDao(t)
		err := dao.Refresh(ctx, &parent{})
		assert.ErrorIs(t, err, ErrTransientEntity)
	})
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("guarded by version", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 2)

		mock.ExpectExec("DELETE FROM parent WHERE id = 1 AND _version = 2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, dao.Delete(ctx, p))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		dao, mock := newParentDao(t)
		p := findParent(t, dao, mock, 2)

		mock.ExpectExec("DELETE FROM parent WHERE id = 1 AND _version = 2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := dao.Delete(ctx, p)
		assert.True(t, IsOptimisticLock(err))
	})

	t.Run("by id", func(t *testing.T) {
		dao, mock := newParentDao(t)
		mock.ExpectExec("DELETE FROM parent WHERE id = 9").WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, dao.DeleteByID(ctx, 9))

		mock.ExpectExec("DELETE FROM parent WHERE id = 9").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, dao.DeleteByID(ctx, 9), ErrOptimisticLock)
	})

	t.Run("transient entity", func(t *testing.T) {
		dao, _ := newParentDao(t)
		assert.ErrorIs(t, dao.Delete(ctx, &parent{}), ErrTransientEntity)
	})
}

func TestRepository_InvalidEntity(t *testing.T) {
	f, _ := newTestFactory(t)
	repo, err := f.Repository(&parent{})
	require.NoError(t, err)

	_, err = repo.Create(context.Background(), &child{})
	assert.ErrorIs(t, err, ErrInvalidEntity)

	_, err = repo.IsTransient(parent{})
	assert.ErrorIs(t, err, ErrInvalidEntity)

	_, err = f.Repository(struct{}{})
	assert.ErrorIs(t, err, ErrUnhandledEntityType)

	assert.ErrorIs(t, f.Register(struct{ Name string }{}), ErrInvalidEntity)
}
