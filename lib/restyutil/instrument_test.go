package restyutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	lock     sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.messages[id] = contents
}

func TestInstrumentClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
		w.Write([]byte("hello " + r.URL.Path))
	}))
	defer server.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New().SetBaseURL(server.URL)
	InstrumentClient(client, nil, out)

	res, err := client.R().SetContext(context.Background()).Get("/index.html")
	require.NoError(t, err)
	require.Equal(t, "hello /index.html", res.String())

	_, err = client.R().Get("/missing")
	require.NoError(t, err)

	require.Len(t, out.messages, 2)
	require.Contains(t, out.messages["1"], "GET "+server.URL+"/index.html")
	require.Contains(t, out.messages["1"], "X-Test: yes")
	require.Contains(t, out.messages["1"], "hello /index.html")
	require.Contains(t, out.messages["2"], "404")
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "resty")
	require.NoError(t, os.MkdirAll(dir, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("old"), 0600))

	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	out.Write("1", "contents")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	contents, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(contents))
}

func TestInstrumentClientRequestBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New().SetBaseURL(server.URL)
	InstrumentClient(client, nil, out)

	_, err := client.R().Get("/")
	require.NoError(t, err)
	_, err = client.R().SetBody("name=Pe%C3%B1a").Post("/form")
	require.NoError(t, err)

	require.Len(t, out.messages, 2)
	require.Contains(t, out.messages["1"], "GET "+server.URL+"/")
	require.Contains(t, out.messages["2"], "POST "+server.URL+"/form")
	require.Contains(t, out.messages["2"], "name=Pe%C3%B1a")
}
