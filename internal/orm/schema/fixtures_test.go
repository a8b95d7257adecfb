package schema

import "reflect"

type model struct {
	version int
}

func (m *model) Version() int { return m.version }

type ref[T any] struct{}

func (ref[T]) RelatedType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }
func (ref[T]) IsCollection() bool        { return false }

type many[T any] struct{}

func (many[T]) RelatedType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }
func (many[T]) IsCollection() bool        { return true }

type parent struct {
	model    `orm:"table:parent"`
	ID       int `orm:"id"`
	Child    ref[child]
	Children many[child]
}

type child struct {
	model `orm:"table:child"`
	ID    int `orm:"id"`
	Data  string
}

type annotated struct {
	model   `orm:"table:Test"`
	ID      string   `orm:"id;noauto;field:myId;type:VARCHAR(13)"`
	Boolean *bool    `orm:"field:some-bool"`
	Float   *float64 `orm:"field:some-float;type:FLOAT"`
	Integer *int     `orm:"field:some-integer;unique"`
	String  string   `orm:"field:some-string;type:VARCHAR(60);notnull"`
	Skipped string   `orm:"-"`
	scratch string
}

type library struct {
	model `orm:"table:library"`
	ID    int64      `orm:"id"`
	Books many[book] `orm:"jointable"`
}

type book struct {
	model `orm:"table:book"`
	ID    int64 `orm:"id"`
	Title string
}

type node struct {
	model `orm:"table:node"`
	ID    int `orm:"id"`
	Next  ref[node]
	Kids  many[node]
}

func newTestRegistry() *Registry {
	return NewRegistry(reflect.TypeOf(model{}))
}

func mustBuild(r *Registry, v any) *Table {
	table, err := r.Build(reflect.TypeOf(v))
	if err != nil {
		panic(err)
	}
	return table
}
