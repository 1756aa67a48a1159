// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package minilog

import "testing"

func TestRingDumpReturnsOldestToNewest(t *testing.T) {
	r := NewRing(3)
	r.Println("one")
	r.Println("two")
	r.Println("three")

	dump := r.Dump()
	if len(dump) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(dump), dump)
	}
	for i, want := range []string{"one", "two", "three"} {
		if !containsSuffix(dump[i], want) {
			t.Errorf("line %d = %q, want suffix %q", i, dump[i], want)
		}
	}
}

func TestRingDropsOldestPastCapacity(t *testing.T) {
	r := NewRing(2)
	r.Println("one")
	r.Println("two")
	r.Println("three")

	dump := r.Dump()
	if len(dump) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(dump), dump)
	}
	if !containsSuffix(dump[0], "two") || !containsSuffix(dump[1], "three") {
		t.Errorf("expected [two, three], got %v", dump)
	}
}

func TestRingWriteImplementsIOWriter(t *testing.T) {
	r := NewRing(2)
	n, err := r.Write([]byte("hello world\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len("hello world\n") {
		t.Fatalf("Write returned n=%d, want %d", n, len("hello world\n"))
	}

	dump := r.Dump()
	if len(dump) != 1 || dump[0] != "hello world" {
		t.Fatalf("Dump = %v, want [\"hello world\"]", dump)
	}
}

func containsSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
