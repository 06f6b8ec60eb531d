package debuglog

import (
	"bytes"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
)

func TestGetLogger(t *testing.T) {
	if GetLogger() == nil {
		t.Error("GetLogger returned nil")
	}
}

func TestPrintf(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(io.Discard)

	Printf("stored reqNo : %d -> %s", 7, "/a?rn=7")

	output := buf.String()
	if !strings.Contains(output, "stored reqNo : 7 -> /a?rn=7") {
		t.Errorf("Printf output incorrect: got %q", output)
	}
	if !strings.Contains(output, "[Beacon] ") {
		t.Errorf("missing prefix: got %q", output)
	}
}

func TestPrintln(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(io.Discard)

	Println("replay", "done")

	if output := buf.String(); !strings.Contains(output, "replay done") {
		t.Errorf("Println output incorrect: got %q", output)
	}
}

func TestSetLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetLogger(log.New(&buf, "custom: ", 0))
	Printf("hello %s", "world")

	if got := buf.String(); got != "custom: hello world\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestConcurrentAccess(_ *testing.T) {
	var wg sync.WaitGroup

	for i := 0; i < 500; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			Printf("concurrent message %d", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = GetLogger()
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetOutput(io.Discard)
		}()
	}

	wg.Wait()
}
