package ketama

import (
	"reflect"
	"testing"
)

func TestRegistry(t *testing.T) {
	var g Registry
	if _, ok := g.Get("cache"); ok {
		t.Fatalf("unexpected ring in empty registry")
	}
	r := g.GetOrCreate("cache", WithPointsPerServer(10))
	if err := r.Add(server("foo")); err != nil {
		t.Fatal(err)
	}
	if n := r.Points(); n != 10 {
		t.Fatalf("options were not applied: %d points", n)
	}
	if x := g.GetOrCreate("cache"); x != r {
		t.Fatalf("GetOrCreate() created another ring")
	}
	if x, ok := g.Get("cache"); !ok || x != r {
		t.Fatalf("Get() returned unexpected ring")
	}

	g.Put("sessions", New())
	if act, exp := g.Names(), []string{"cache", "sessions"}; !reflect.DeepEqual(act, exp) {
		t.Fatalf("unexpected names: %v; want %v", act, exp)
	}
	if !g.Delete("cache") {
		t.Fatalf("Delete() reported no ring")
	}
	if g.Delete("cache") {
		t.Fatalf("second Delete() reported a ring")
	}
	if act, exp := g.Names(), []string{"sessions"}; !reflect.DeepEqual(act, exp) {
		t.Fatalf("unexpected names: %v; want %v", act, exp)
	}
}
