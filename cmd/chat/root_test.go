package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadLines_ClosesAtEOF(t *testing.T) {
	var got []string
	for line := range readLines(context.Background(), strings.NewReader("one\ntwo\n")) {
		got = append(got, line)
	}
	require.Equal(t, []string{"one", "two"}, got)
}

// endlessInput never reaches EOF.
type endlessInput struct{}

func (endlessInput) Read(p []byte) (int, error) {
	return copy(p, "again\n"), nil
}

func TestReadLines_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, endlessInput{})
	require.Equal(t, "again", <-lines)

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("reader goroutine never exited")
		}
	}
}

func TestResolveEndpoint(t *testing.T) {
	ep, err := resolveEndpoint(chatOptions{pageURL: "https://erkin.me/"})
	require.NoError(t, err)
	require.Equal(t, "https://erkin.me/api/openrouter", ep.URL)

	ep, err = resolveEndpoint(chatOptions{endpoint: "http://127.0.0.1:3000/api/openrouter"})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:3000/api/openrouter", ep.URL)
}
