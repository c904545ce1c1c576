package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/matheus3301/chatd/internal/client"
	"github.com/matheus3301/chatd/internal/store"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	_ = w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	return string(out)
}

func TestCmdSession(t *testing.T) {
	s := &client.Session{User: store.User{ID: "u1", FullName: "Alice"}, Token: "tok"}

	plain := captureStdout(t, func() { cmdSession(s, nil, false) })
	if !strings.Contains(plain, "Alice (u1)") || !strings.Contains(plain, "Token: tok") {
		t.Errorf("plain output = %q", plain)
	}

	js := captureStdout(t, func() { cmdSession(s, nil, true) })
	if !strings.Contains(js, `"token": "tok"`) {
		t.Errorf("json output = %q", js)
	}
}
