package rembg

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/img2reveal/util"
	nhttp "github.com/chaos-io/img2reveal/util/http"
)

const BiRefNetModel = "BiRefNet"

//go:embed workflow.json
var workflowData string

// BiRefNetRemBG 通过 ComfyUI BiRefNet 工作流去背景
// 上传图片 → 提交 prompt → 查询 history → 下载结果
// 单次 best-effort 调用，不做重试
type BiRefNetRemBG struct {
	baseURL string
	cli     nhttp.IClient
}

func NewBiRefNetRemBG(baseURL string) *BiRefNetRemBG {
	return &BiRefNetRemBG{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		cli:     nhttp.NewHTTPClient(),
	}
}

func (b *BiRefNetRemBG) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	name := ksuid.New().String() + ".png"

	uploaded, err := b.uploadImage(ctx, name, img)
	if err != nil {
		return nil, err
	}

	promptID, err := b.prompt(ctx, uploaded)
	if err != nil {
		return nil, err
	}

	out, err := b.historyOutput(ctx, promptID)
	if err != nil {
		return nil, err
	}

	return b.fetchOutput(out)
}

type uploadImageResp struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

/*
	curl -X POST "$BASE_URL/api/upload/image" \
	  -F "image=@my_image.png" \
	  -F "type=input" \
	  -F "overwrite=true"

{"name": "my_image1.png", "subfolder": "", "type": "input"}
*/
func (b *BiRefNetRemBG) uploadImage(ctx context.Context, name string, img image.Image) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	_ = writer.WriteField("type", "input")
	_ = writer.WriteField("overwrite", "true")
	_ = writer.Close()

	resp := &uploadImageResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + "/api/upload/image",
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   resp,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}

	slog.Debug("uploaded image", "response", resp)
	return resp.Name, nil
}

type promptResp struct {
	PromptID string `json:"prompt_id"`
}

/*
	curl -X POST "$BASE_URL/api/prompt" \
	  -H "Content-Type: application/json" \
	  -d '{"prompt": '"$(cat workflow.json)"'}'
*/
func (b *BiRefNetRemBG) prompt(ctx context.Context, imageName string) (string, error) {
	data := strings.Replace(workflowData, "MyImage.png", imageName, 1)

	wk := map[string]any{}
	if err := json.Unmarshal([]byte(data), &wk); err != nil {
		return "", fmt.Errorf("unmarshal workflow data: %w", err)
	}

	body, err := json.Marshal(map[string]any{"prompt": wk})
	if err != nil {
		return "", fmt.Errorf("marshal workflow data: %w", err)
	}

	resp := &promptResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + "/api/prompt",
		Method:     "POST",
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       body,
		Response:   resp,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}

	slog.Debug("queued prompt", "promptID", resp.PromptID)
	return resp.PromptID, nil
}

type historyImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []historyImage `json:"images"`
	} `json:"outputs"`
}

// historyOutput 查询执行结果里的输出图片
func (b *BiRefNetRemBG) historyOutput(ctx context.Context, promptID string) (*historyImage, error) {
	history := map[string]historyEntry{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + "/api/history/" + promptID,
		Method:     "GET",
		Response:   &history,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	entry, ok := history[promptID]
	if !ok {
		return nil, fmt.Errorf("prompt %s not finished", promptID)
	}
	for _, out := range entry.Outputs {
		if len(out.Images) > 0 {
			return &out.Images[0], nil
		}
	}
	return nil, fmt.Errorf("prompt %s produced no image", promptID)
}

func (b *BiRefNetRemBG) fetchOutput(out *historyImage) (image.Image, error) {
	q := url.Values{}
	q.Set("filename", out.Filename)
	q.Set("subfolder", out.Subfolder)
	q.Set("type", out.Type)

	img, err := util.DownloadImage(b.baseURL + "/api/view?" + q.Encode())
	if err != nil {
		return nil, fmt.Errorf("download output: %w", err)
	}
	return img, nil
}
