package input

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bits")
	if err := os.WriteFile(path, []byte{0, 1, 1, 0}, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(data) != 4 {
		t.Errorf("read %d bytes, want 4", len(data))
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent"), ""); err == nil {
		t.Error("opening a missing file should fail")
	}
}

func TestUDPSource(t *testing.T) {
	src, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	defer src.Close()

	conn, err := net.Dial("udp", src.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{1, 0, 1, 1}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if _, err := conn.Write([]byte{0, 0}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	var got []byte
	buf := make([]byte, 3) // smaller than the first datagram
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < 6 && time.Now().Before(deadline) {
		n, err := src.Read(buf)
		if err != nil {
			t.Fatalf("Read() error: %v", err)
		}
		got = append(got, buf[:n]...)
	}

	want := []byte{1, 0, 1, 1, 0, 0}
	if string(got) != string(want) {
		t.Errorf("received %v, want %v", got, want)
	}
}

func TestUDPSource_CloseUnblocksRead(t *testing.T) {
	src, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := src.Read(make([]byte, 16))
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	src.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Read() after Close() should error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Read() did not return after Close()")
	}
}
