package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"r9ctl/csv"
)

var testReading = Reading{
	Time: time.Date(2023, 6, 2, 10, 31, 4, 0, time.UTC),
	Addr: "169.254.11.17:50000",
	Raw:  "42.1\n",
}

func TestReadingString(t *testing.T) {
	want := `{Time:2023-06-02T10:31:04.000 Addr:169.254.11.17:50000 Reply:"42.1\n"}`
	if got := testReading.String(); got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}
}

func TestReadingRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := csv.NewEncoder(buf).Encode(testReading); err != nil {
		t.Fatalf("encode: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "2023-06-02T10:31:04.000,169.254.11.17:50000,") {
		t.Fatalf("csv record = %q", got)
	}
}

func TestReadingJSON(t *testing.T) {
	data, err := json.Marshal(testReading)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Reading
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Raw != testReading.Raw || back.Addr != testReading.Addr {
		t.Fatalf("round trip = %+v", back)
	}
}
