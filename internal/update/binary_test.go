package update

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func gzipBase64(t *testing.T, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestApplyBinaryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "app-binary")
	payload := []byte("#!/bin/sh\necho hi\n")
	blob := gzipBase64(t, payload)

	if err := ApplyBinary(dst, blob); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("unexpected content: %q", got)
	}

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(dst)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if fi.Mode().Perm()&0o100 == 0 {
			t.Fatalf("expected executable bit set, got mode %v", fi.Mode())
		}
	}
}
