package xjson

import (
	"encoding/json"
	"testing"
)

func TestFromGo(t *testing.T) {
	type named string
	in := map[string]interface{}{
		"s":     "x",
		"n":     7,
		"u":     uint8(3),
		"f":     2.5,
		"b":     true,
		"nil":   nil,
		"bytes": []byte("raw"),
		"list":  []interface{}{1, "two"},
		"strs":  []string{"a", "b"},
		"named": named("n"),
		"inner": map[string]int{"one": 1},
		"num":   json.Number("1e3"),
	}
	v, err := FromGo(in)
	if err != nil {
		t.Fatal(err)
	}
	want := Map(map[string]Value{
		"s":     String("x"),
		"n":     Int(7),
		"u":     Int(3),
		"f":     Float(2.5),
		"b":     Bool(true),
		"nil":   Null(),
		"bytes": Binary([]byte("raw")),
		"list":  List(Int(1), String("two")),
		"strs":  List(String("a"), String("b")),
		"named": String("n"),
		"inner": Map(map[string]Value{"one": Int(1)}),
		"num":   Number("1e3"),
	})
	if !Equal(v, want) {
		t.Errorf("got %s; want %s", v, want)
	}
}

func TestFromGoUnsupported(t *testing.T) {
	if _, err := FromGo(map[int]string{1: "x"}); err == nil {
		t.Error("expected error for non-string map keys")
	}
	if _, err := FromGo(make(chan int)); err == nil {
		t.Error("expected error for channel")
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Null(), Value{}, true},
		{Int(1), Float(1), true},
		{Int(1), Number("1.0"), false},
		{String("a"), Binary([]byte("a")), false},
		{Binary([]byte{1}), Binary([]byte{1}), true},
		{List(Int(1), Int(2)), List(Int(2), Int(1)), false},
		{Map(map[string]Value{"a": Null()}), Map(map[string]Value{"b": Null()}), false},
		{Map(map[string]Value{"a": Null()}), Map(map[string]Value{"a": Null()}), true},
	}
	for i, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("%d: Equal(%s, %s) = %v", i, tt.a, tt.b, got)
		}
	}
}

func TestContainsExtended(t *testing.T) {
	if ContainsExtended(sample()) {
		t.Error("plain sample reported as extended")
	}
	deep := List(Map(map[string]Value{"x": List(Binary(nil))}))
	if !ContainsExtended(deep) {
		t.Error("nested blob not found")
	}
}

func TestValueIsImmutable(t *testing.T) {
	raw := []byte{1, 2, 3}
	v := Binary(raw)
	raw[0] = 9
	out := v.Bytes()
	out[1] = 9
	if got := v.Bytes(); got[0] != 1 || got[1] != 2 {
		t.Errorf("blob changed to %v", got)
	}

	m := map[string]Value{"a": Int(1)}
	mv := Map(m)
	m["b"] = Int(2)
	if mv.Len() != 1 {
		t.Errorf("map value changed to %s", mv)
	}
}

func TestInterface(t *testing.T) {
	v := List(Null(), Int(3), Binary([]byte("z")), Map(map[string]Value{"k": Bool(true)}))
	got := v.Interface().([]interface{})
	if got[0] != nil || got[1] != json.Number("3") || string(got[2].([]byte)) != "z" {
		t.Errorf("got %#v", got)
	}
	if got[3].(map[string]interface{})["k"] != true {
		t.Errorf("got %#v", got[3])
	}
}

func TestValueJSONInterfaces(t *testing.T) {
	type doc struct {
		V Value `json:"v"`
	}
	in := doc{V: Binary([]byte{0xFF})}
	text, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"v":{"@kv_type":"binary","data":"/w=="}}`; string(text) != want {
		t.Errorf("got %s; want %s", text, want)
	}
	var out doc
	if err := json.Unmarshal(text, &out); err != nil {
		t.Fatal(err)
	}
	if !Equal(in.V, out.V) {
		t.Errorf("got %s", out.V)
	}
}
