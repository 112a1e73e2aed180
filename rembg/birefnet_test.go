package rembg

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeComfyUI(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	var uploadedName string

	mux.HandleFunc("/api/upload/image", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		require.NoError(t, r.ParseMultipartForm(10<<20))
		assert.Equal(t, "input", r.FormValue("type"))
		assert.Equal(t, "true", r.FormValue("overwrite"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer func() {
			_ = file.Close()
		}()

		_, err = png.Decode(file)
		require.NoError(t, err, "uploaded bytes should be a valid png")

		uploadedName = header.Filename
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name": uploadedName, "subfolder": "", "type": "input",
		})
	})

	mux.HandleFunc("/api/prompt", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Prompt map[string]any `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Prompt)

		// 上传的文件名要被替换进工作流
		raw, _ := json.Marshal(req.Prompt)
		assert.True(t, strings.Contains(string(raw), uploadedName))
		assert.False(t, strings.Contains(string(raw), "MyImage.png"))

		_ = json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p123"})
	})

	mux.HandleFunc("/api/history/p123", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"p123": map[string]any{
				"outputs": map[string]any{
					"3": map[string]any{
						"images": []map[string]string{
							{"filename": "rembg_0001.png", "subfolder": "", "type": "output"},
						},
					},
				},
			},
		})
	})

	mux.HandleFunc("/api/view", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		assert.Equal(t, "rembg_0001.png", r.URL.Query().Get("filename"))
		assert.Equal(t, "output", r.URL.Query().Get("type"))

		out := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		out.SetNRGBA(0, 0, color.NRGBA{B: 255, A: 255})
		buf := &bytes.Buffer{}
		require.NoError(t, png.Encode(buf, out))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBiRefNetRemBG_Remove(t *testing.T) {
	srv := newFakeComfyUI(t)

	b := NewBiRefNetRemBG(srv.URL + "/")
	got, err := b.Remove(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, image.Rect(0, 0, 4, 4), got.Bounds())
}

func TestBiRefNetRemBG_RemoveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	b := NewBiRefNetRemBG(srv.URL)
	_, err := b.Remove(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	require.Error(t, err)
}

func TestDefaultRemBG_Remove(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	got, err := NewDefaultRemBG().Remove(context.Background(), img)
	require.NoError(t, err)
	assert.Same(t, img, got)
}
