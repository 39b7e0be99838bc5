package testutil

import (
	"reflect"
	"testing"
)

func TestJS(t *testing.T) {
	type pair struct {
		Name string
		N    int
	}

	if got, want := JS(pair{"a", 1}), `{"Name":"a","N":1}`; got != want {
		t.Errorf("JS() = %v, want %v", got, want)
	}
}

func TestDwimjs(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want interface{}
	}{
		{
			name: "JSON string",
			arg:  `{"track":"A-1","credit":2}`,
			want: map[string]interface{}{"track": "A-1", "credit": float64(2)},
		},
		{
			name: "JSON bytes",
			arg:  []byte(`[1,2]`),
			want: []interface{}{float64(1), float64(2)},
		},
		{
			name: "non-JSON string",
			arg:  "hello world",
			want: "hello world",
		},
		{
			name: "something else",
			arg:  12345,
			want: 12345,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dwimjs(tt.arg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dwimjs() = %v, want %v", got, tt.want)
			}
		})
	}
}
