package handler

import (
	"errors"
	"testing"
)

func TestParseSplitParam(t *testing.T) {
	sp, err := ParseSplitParam(map[string]string{
		PropTopic:       "orders",
		PropPartition:   "3",
		PropStartOffset: "10",
		PropEndOffset:   " 13 ",
	})
	if err != nil {
		t.Fatalf("ParseSplitParam: %v", err)
	}
	want := SplitParam{Topic: "orders", Partition: 3, StartOffset: 10, EndOffset: 13}
	if sp != want {
		t.Fatalf("got %+v, want %+v", sp, want)
	}
	if sp.String() != "orders[3]@[10,13)" {
		t.Fatalf("unexpected String(): %s", sp)
	}
	back, err := ParseSplitParam(sp.Properties())
	if err != nil || back != sp {
		t.Fatalf("Properties round trip: %+v %v", back, err)
	}
}

func TestParseSplitParam_Invalid(t *testing.T) {
	valid := func() map[string]string {
		return map[string]string{PropTopic: "t", PropPartition: "0", PropStartOffset: "1", PropEndOffset: "2"}
	}
	cases := map[string]func(map[string]string){
		"missing topic":     func(m map[string]string) { delete(m, PropTopic) },
		"blank topic":       func(m map[string]string) { m[PropTopic] = "  " },
		"missing partition": func(m map[string]string) { delete(m, PropPartition) },
		"negative start":    func(m map[string]string) { m[PropStartOffset] = "-1" },
		"non-numeric end":   func(m map[string]string) { m[PropEndOffset] = "later" },
		"partition range":   func(m map[string]string) { m[PropPartition] = "4294967296" },
		"inverted range":    func(m map[string]string) { m[PropStartOffset] = "5" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			props := valid()
			mutate(props)
			if _, err := ParseSplitParam(props); !errors.Is(err, ErrInvalidSplit) {
				t.Fatalf("want ErrInvalidSplit, got %v", err)
			}
		})
	}
}

func TestParseSplitParam_EqualOffsets(t *testing.T) {
	sp, err := ParseSplitParam(map[string]string{PropTopic: "t", PropPartition: "0", PropStartOffset: "4", PropEndOffset: "4"})
	if err != nil || sp.StartOffset != sp.EndOffset {
		t.Fatalf("empty range should parse: %+v %v", sp, err)
	}
}
